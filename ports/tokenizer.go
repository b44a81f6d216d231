package ports

import "github.com/layer-3/vaultgate/core"

// Tokenizer converts between sessions and signed session tokens
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)
	TokenToSession(token string) (*core.Session, error)
}
