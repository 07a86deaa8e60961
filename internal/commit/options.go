package commit

import (
	"strings"

	"github.com/ChuLiYu/git-queue/pkg/types"
)

// Options control how the storage engine writes a commit.
type Options struct {
	Author     types.EmailAddress // null: resolved by the storage engine
	SigningKey types.SigningKeyID // null: unsigned unless the engine has a default
	NoGPGSign  bool               // overrides SigningKey
}

// ShouldSign reports whether the commit must carry an OpenPGP signature.
func (o Options) ShouldSign() bool {
	return !o.NoGPGSign && !o.SigningKey.IsNull()
}

// String renders the options the way `git commit` would receive them; used in logs.
func (o Options) String() string {
	parts := []string{"--allow-empty"}
	if !o.Author.IsNull() {
		parts = append(parts, `--author="`+o.Author.String()+`"`)
	}
	if !o.SigningKey.IsNull() {
		parts = append(parts, "--gpg-sign="+o.SigningKey.String())
	}
	if o.NoGPGSign {
		parts = append(parts, "--no-gpg-sign")
	}
	return strings.Join(parts, " ")
}
