package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driving"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Operate the recommendation catalog",
	Long: `catalogctl exports the product catalog, publishes it to the reasoning
service as a new agent and runs searches against a recommender server.`,
	SilenceUsage: true,
}

// Services holds the backends the operator commands run against.
type Services struct {
	Exporter      driving.CatalogExporter
	Pipeline      driving.PublishPipeline
	Registrations driven.RegistrationStore
	Deployment    string

	// Close releases connections opened by the loader (optional)
	Close func()
}

// ServiceLoader builds Services on first use so that commands talking only
// to the HTTP API never open database connections.
type ServiceLoader func(ctx context.Context) (*Services, error)

var (
	loadServices ServiceLoader
	services     *Services
)

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// SetServiceLoader installs the loader used by export, publish and agent.
func SetServiceLoader(loader ServiceLoader) {
	loadServices = loader
	services = nil
}

// Execute runs the root command. Cancelling ctx stops long-running commands.
func Execute(ctx context.Context) error {
	defer closeServices()
	return rootCmd.ExecuteContext(ctx)
}

func requireServices(ctx context.Context) (*Services, error) {
	if services != nil {
		return services, nil
	}
	if loadServices == nil {
		return nil, errors.New("catalog services not configured")
	}
	s, err := loadServices(ctx)
	if err != nil {
		return nil, err
	}
	services = s
	return s, nil
}

func closeServices() {
	if services != nil && services.Close != nil {
		services.Close()
	}
	services = nil
}
