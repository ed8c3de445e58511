package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"stakingcore/crypto"
)

const defaultPassphraseEnv = "STAKECTL_PASSPHRASE"

// readPassphrase takes the key file passphrase from envVar, or prompts on the
// terminal when the variable is unset. Blank passphrases are refused.
func readPassphrase(envVar string, prompt io.Writer) (string, error) {
	if envVar = strings.TrimSpace(envVar); envVar != "" {
		if value, ok := os.LookupEnv(envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", envVar)
			}
			return value, nil
		}
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if envVar != "" {
			return "", fmt.Errorf("key file passphrase required; set %s or run interactively", envVar)
		}
		return "", errors.New("key file passphrase required and no terminal available")
	}
	fmt.Fprint(prompt, "Key file passphrase: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", errors.New("key file passphrase cannot be empty")
	}
	return string(raw), nil
}

// identityFlags lets a command name its acting identity either by address or
// by unlocking a key file.
type identityFlags struct {
	address       string
	keyFile       string
	passphraseEnv string
}

func (f *identityFlags) register(flags *pflag.FlagSet, name, usage string) {
	flags.StringVar(&f.address, name, "", usage)
	flags.StringVar(&f.keyFile, "keyfile", "", "encrypted key file holding the identity")
	flags.StringVar(&f.passphraseEnv, "passphrase-env", defaultPassphraseEnv, "environment variable holding the key file passphrase")
}

func (f *identityFlags) resolve(prompt io.Writer) (crypto.Address, error) {
	switch {
	case f.address != "" && f.keyFile != "":
		return crypto.Address{}, errors.New("pass either an address or --keyfile, not both")
	case f.keyFile != "":
		pass, err := readPassphrase(f.passphraseEnv, prompt)
		if err != nil {
			return crypto.Address{}, err
		}
		key, err := crypto.LoadKeyFile(f.keyFile, pass)
		if err != nil {
			return crypto.Address{}, err
		}
		return key.PubKey().Address(), nil
	default:
		return crypto.ParseAddress(f.address)
	}
}
