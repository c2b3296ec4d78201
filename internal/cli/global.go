package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fluxloop/fluxloop-cli/internal/client"
	"github.com/fluxloop/fluxloop-cli/internal/config"
)

const stagingServer = "https://staging.api.fluxloop.ai"

type GlobalOptions struct {
	ConfigFilePath string
	ApiUrl         string
	Staging        bool
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: client.DefaultFluxLoopClientConfigPath(),
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFilePath, "config", o.ConfigFilePath, "Path to the client configuration file")
	fs.StringVarP(&o.ApiUrl, "api-url", "u", o.ApiUrl, "FluxLoop API base URL")
	fs.BoolVar(&o.Staging, "staging", o.Staging, "Use staging API (staging.api.fluxloop.ai)")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

// Config loads the client configuration, falling back to defaults when no
// config file exists yet. The server address resolves in order: --api-url,
// --staging, the config file, FLUXLOOP_API_URL, the production default.
func (o *GlobalOptions) Config() (*client.Config, error) {
	clientConfig, err := client.ParseConfigFile(o.ConfigFilePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		clientConfig = client.NewDefault()
	}

	switch {
	case o.ApiUrl != "":
		clientConfig.Service.Server = o.ApiUrl
	case o.Staging:
		clientConfig.Service.Server = stagingServer
	}

	if clientConfig.Service.Server == "" {
		if env, err := config.New(); err == nil && env.Service.BaseUrl != "" {
			clientConfig.Service.Server = env.Service.BaseUrl
		}
	}
	if clientConfig.Service.Server == "" {
		clientConfig.Service.Server = client.DefaultServer
	}

	return clientConfig, nil
}

func (o *GlobalOptions) Client() (*client.FluxClient, error) {
	clientConfig, err := o.Config()
	if err != nil {
		return nil, err
	}
	return client.NewFromConfig(clientConfig)
}

func (o *GlobalOptions) ClientWithTimeout(timeout time.Duration) (*client.FluxClient, error) {
	clientConfig, err := o.Config()
	if err != nil {
		return nil, err
	}
	return client.NewFromConfigWithTimeout(clientConfig, timeout)
}
