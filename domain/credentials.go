package domain

import (
	"fmt"
	"math/rand"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Anonymous read-only access: the server accepts any justinfan nickname
// with a throwaway token.
const placeholderToken = "blah"

var validate = validator.New()

// Credentials is the immutable per-join connection identity.
// Built once from the config snapshot and owned by a single session.
type Credentials struct {
	Channel string `validate:"required"`
	Token   string
	Nick    string
}

// NewCredentials fills missing token/nick with anonymous defaults.
func NewCredentials(channel, token, nick string) Credentials {
	return Credentials{
		Channel: channel,
		Token:   lo.CoalesceOrEmpty(token, placeholderToken),
		Nick:    lo.CoalesceOrEmpty(nick, anonymousNick()),
	}
}

func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid credentials: %w", err)
	}
	return nil
}

func anonymousNick() string {
	return fmt.Sprintf("justinfan%d", rand.Intn(900000)+100000)
}
