package venue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/internal/eth"
)

// AssetEntry maps a symbol to the token address the venues know it by
type AssetEntry struct {
	Symbol  string
	Address string
}

// AddressBook resolves asset symbols to venue token addresses. It is fixed for
// the lifetime of the process.
type AddressBook struct {
	symbols   []string
	addresses map[string]string
}

// NewAddressBook builds a book from ordered entries. The entry order defines the
// asset set used by vault aggregations.
func NewAddressBook(entries []AssetEntry) (*AddressBook, error) {
	book := &AddressBook{addresses: make(map[string]string, len(entries))}

	for _, e := range entries {
		symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("%w: empty asset symbol", core.ErrInvalidInput)
		}
		if _, dup := book.addresses[symbol]; dup {
			return nil, fmt.Errorf("%w: duplicate asset symbol %s", core.ErrInvalidInput, symbol)
		}
		book.symbols = append(book.symbols, symbol)
		book.addresses[symbol] = strings.TrimSpace(e.Address)
	}

	return book, nil
}

// Symbols returns the configured asset symbols in configuration order
func (b *AddressBook) Symbols() []string {
	out := make([]string, len(b.symbols))
	copy(out, b.symbols)
	return out
}

// Validate reports every entry whose mapped address is not a well-formed address
func (b *AddressBook) Validate() error {
	var errs []error
	for _, symbol := range b.symbols {
		if addr := b.addresses[symbol]; !eth.IsAddress(addr) {
			errs = append(errs, fmt.Errorf("%w: %s=%q", core.ErrInvalidMappedAddress, symbol, addr))
		}
	}
	return errors.Join(errs...)
}

// Resolve turns a symbol or raw address into a token address. Raw addresses pass
// through, symbols are matched case-insensitively. Nothing is ever defaulted.
func (b *AddressBook) Resolve(symbolOrAddress string) (common.Address, error) {
	clean := strings.TrimSpace(symbolOrAddress)

	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		if !eth.IsAddress(clean) {
			return common.Address{}, fmt.Errorf("%w: %q", core.ErrInvalidAddress, clean)
		}
		return common.HexToAddress(clean), nil
	}

	mapped, ok := b.addresses[strings.ToUpper(clean)]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", core.ErrUnknownAsset, clean)
	}
	if !eth.IsAddress(mapped) {
		return common.Address{}, fmt.Errorf("%w: %s=%q", core.ErrInvalidMappedAddress, strings.ToUpper(clean), mapped)
	}

	return common.HexToAddress(mapped), nil
}
