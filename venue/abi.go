package venue

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const spotVaultABI = `[
	{"type":"function","name":"balances","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"},{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const spotOrderBookABI = `[
	{"type":"function","name":"createOrder","stateMutability":"nonpayable",
	 "inputs":[{"name":"base","type":"address"},{"name":"quote","type":"address"},{"name":"price","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"isBuy","type":"bool"}],
	 "outputs":[{"name":"orderId","type":"uint256"}]},
	{"type":"function","name":"cancelOrder","stateMutability":"nonpayable",
	 "inputs":[{"name":"orderId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getOrder","stateMutability":"view",
	 "inputs":[{"name":"orderId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"id","type":"uint256"},{"name":"trader","type":"address"},
		{"name":"base","type":"address"},{"name":"quote","type":"address"},
		{"name":"price","type":"uint256"},{"name":"amount","type":"uint256"},
		{"name":"filled","type":"uint256"},{"name":"isBuy","type":"bool"},
		{"name":"active","type":"bool"}]}]},
	{"type":"function","name":"getUserOrders","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"event","name":"OrderCreated","anonymous":false,
	 "inputs":[{"name":"orderId","type":"uint256","indexed":true},{"name":"trader","type":"address","indexed":true},
		{"name":"base","type":"address","indexed":false},{"name":"quote","type":"address","indexed":false},
		{"name":"price","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false},
		{"name":"isBuy","type":"bool","indexed":false}]},
	{"type":"event","name":"OrderCancelled","anonymous":false,
	 "inputs":[{"name":"orderId","type":"uint256","indexed":true}]}
]`

const spotExchangeABI = `[
	{"type":"function","name":"executeMatch","stateMutability":"nonpayable",
	 "inputs":[{"name":"buyOrderId","type":"uint256"},{"name":"sellOrderId","type":"uint256"},{"name":"matchAmount","type":"uint256"},{"name":"matchPrice","type":"uint256"}],
	 "outputs":[]}
]`

const futuresVaultABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"},{"name":"token","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"freeBalanceOf","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"},{"name":"token","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

const futuresExchangeABI = `[
	{"type":"function","name":"openPosition","stateMutability":"nonpayable",
	 "inputs":[{"name":"asset","type":"address"},{"name":"size","type":"uint256"},{"name":"isLong","type":"bool"},{"name":"collateralToken","type":"address"},{"name":"collateralAmount","type":"uint256"}],
	 "outputs":[{"name":"positionId","type":"uint256"}]},
	{"type":"function","name":"closePosition","stateMutability":"nonpayable",
	 "inputs":[{"name":"positionId","type":"uint256"},{"name":"collateralToken","type":"address"},{"name":"collateralAmount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"getPosition","stateMutability":"view",
	 "inputs":[{"name":"positionId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple","components":[
		{"name":"id","type":"uint256"},{"name":"trader","type":"address"},
		{"name":"asset","type":"address"},{"name":"size","type":"uint256"},
		{"name":"entryPrice","type":"uint256"},{"name":"isLong","type":"bool"},
		{"name":"collateral","type":"uint256"},{"name":"open","type":"bool"}]}]},
	{"type":"event","name":"PositionOpened","anonymous":false,
	 "inputs":[{"name":"positionId","type":"uint256","indexed":true},{"name":"trader","type":"address","indexed":true},
		{"name":"asset","type":"address","indexed":false},{"name":"size","type":"uint256","indexed":false},
		{"name":"isLong","type":"bool","indexed":false},{"name":"collateral","type":"uint256","indexed":false}]}
]`

const oracleRouterABI = `[
	{"type":"function","name":"getPrice","stateMutability":"view",
	 "inputs":[{"name":"priceId","type":"bytes32"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	SpotVaultABI       = mustParseABI(spotVaultABI)
	SpotOrderBookABI   = mustParseABI(spotOrderBookABI)
	SpotExchangeABI    = mustParseABI(spotExchangeABI)
	FuturesVaultABI    = mustParseABI(futuresVaultABI)
	FuturesExchangeABI = mustParseABI(futuresExchangeABI)
	OracleRouterABI    = mustParseABI(oracleRouterABI)
)

func mustParseABI(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("venue: invalid contract ABI: " + err.Error())
	}
	return &parsed
}
