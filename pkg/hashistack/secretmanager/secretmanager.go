package secretmanager

import (
	"os"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a vault client from VAULT_ADDR / VAULT_TOKEN. config.LoadConfig
// picks it up to overlay credentials.
var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// Enabled reports whether the process was started with a vault address.
func Enabled() bool {
	return os.Getenv("VAULT_ADDR") != ""
}

func ProvideVault() (*vault.Client, error) {
	client, err := vault.New(
		vault.WithEnvironment(),
	)
	if err != nil {
		return nil, err
	}

	zap.L().Info("vault client initialized", zap.String("addr", os.Getenv("VAULT_ADDR")))
	return client, nil
}
