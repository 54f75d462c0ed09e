package registry

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mapsign/mapsign"
	"github.com/mapsign/mapsign/internal/dcontext"
	"github.com/mapsign/mapsign/registry/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	configPath string
	owner      string
	signer     string
	resource   string
	authToken  string
)

func init() {
	for _, cmd := range []*cobra.Command{TemplateCmd, SignatureCmd} {
		cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file, defaults to $MAPSIGN_CONFIGURATION_PATH")
	}

	TemplateCmd.PersistentFlags().StringVarP(&owner, "owner", "o", "", "user owning the templates")
	// nolint:errcheck
	TemplateCmd.MarkPersistentFlagRequired("owner")
	TemplateCmd.AddCommand(templateAddCmd, templateGetCmd, templateDeleteCmd)

	SignatureCmd.PersistentFlags().StringVarP(&signer, "signer", "s", "", "user signing the resource")
	SignatureCmd.PersistentFlags().StringVarP(&resource, "resource", "r", "", "resource instance id")
	// nolint:errcheck
	SignatureCmd.MarkPersistentFlagRequired("signer")
	// nolint:errcheck
	SignatureCmd.MarkPersistentFlagRequired("resource")
	signatureCheckCmd.Flags().StringVarP(&authToken, "token", "t", "", "credential to check")
	SignatureCmd.AddCommand(signatureAddCmd, signatureCheckCmd)
}

// TemplateCmd groups the commands operating on the templates of an owner
// directly against the store.
var TemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "`template` manages the templates of a user",
	Long:  "`template` adds, fetches and deletes the templates of a user directly in the store.",
}

var templateAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "`add` registers the template read from file, or stdin for -",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, templates mapsign.TemplateService, _ mapsign.SignatureService) error {
			tpl, err := readTemplate(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			name, err := templates.Add(ctx, owner, tpl)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s@%s\n", owner, name)
			return nil
		})
	},
}

var templateGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "`get` prints a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, templates mapsign.TemplateService, _ mapsign.SignatureService) error {
			tpl, err := templates.Get(ctx, owner, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tpl)
		})
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "`delete` removes a template and revokes its certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, templates mapsign.TemplateService, _ mapsign.SignatureService) error {
			return templates.Delete(ctx, owner, args[0])
		})
	},
}

// SignatureCmd groups the commands operating on the signatures of a
// resource instance.
var SignatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "`signature` manages the signatures of a resource",
	Long:  "`signature` signs resource instances with certificates and checks credentials against them.",
}

var signatureAddCmd = &cobra.Command{
	Use:   "add <certificate-file>",
	Short: "`add` signs the resource with the certificate read from file, or stdin for -",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, _ mapsign.TemplateService, signatures mapsign.SignatureService) error {
			p, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			cert, err := mapsign.ParseCertificate(p)
			if err != nil {
				return err
			}

			id, err := signatures.AddSignature(ctx, signer, resource, cert)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var signatureCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "`check` reports whether the token grants access to the resource",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(func(ctx context.Context, _ mapsign.TemplateService, signatures mapsign.SignatureService) error {
			authorized, err := signatures.IsAuthorized(ctx, signer, resource, authToken)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), authorized)
			return nil
		})
	},
}

// withStores resolves the configuration and runs fn against stores backed
// by the configured redis. The pool is closed when fn returns.
func withStores(fn func(ctx context.Context, templates mapsign.TemplateService, signatures mapsign.SignatureService) error) error {
	config, err := resolveConfiguration([]string{configPath})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx := dcontext.Background()
	ctx, err = configureLogging(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to configure logging with config: %w", err)
	}

	pool := storage.NewRedisPool(config.Redis)
	defer closePool(ctx, pool)

	signatures := storage.NewSignatureStore(pool)
	templates := storage.NewTemplateStore(pool, signatures)

	return fn(ctx, templates, signatures)
}

func closePool(ctx context.Context, pool *redis.Client) {
	if err := pool.Close(); err != nil {
		dcontext.GetLogger(ctx).Warnf("error closing redis pool: %v", err)
	}
}

// readInput reads the named file, or in when name is "-".
func readInput(in io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(name)
}

func readTemplate(in io.Reader, name string) (mapsign.Template, error) {
	var tpl mapsign.Template

	p, err := readInput(in, name)
	if err != nil {
		return tpl, err
	}

	if err := json.Unmarshal(p, &tpl); err != nil {
		return tpl, fmt.Errorf("invalid template %s: %w", name, err)
	}
	return tpl, nil
}
