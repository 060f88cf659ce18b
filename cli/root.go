package cli

import (
	"fmt"
	"os"

	"github.com/wokdav/sshcrypto/config"
	"github.com/wokdav/sshcrypto/keystore"
	"github.com/wokdav/sshcrypto/logging"

	_ "github.com/wokdav/sshcrypto/config/v1"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sshcrypto",
	Short: "Work with SSH RSA keys and MACs",
	Long: `sshcrypto exercises the RSA and HMAC primitives of the SSH protocol
on a directory of keys.

It fingerprints, signs and verifies with ssh-rsa keys, encrypts RSA key
exchange secrets and computes transport MACs. A policy file decides which
algorithms are allowed and how large keys must be.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		policy = config.Default()
		if policyFile != "" {
			f, err := os.Open(policyFile)
			if err != nil {
				return fmt.Errorf("can't open policy: %w", err)
			}
			defer f.Close()

			policy, err = config.ParseConfig(f)
			if err != nil {
				return fmt.Errorf("can't parse policy %s: %w", policyFile, err)
			}
		}

		level := policy.LogLevel
		if debug {
			level = logging.LevelDebug
		} else if verbose {
			level = logging.LevelInfo
		}
		logging.Initialize(level, cmd.ErrOrStderr(), cmd.ErrOrStderr())

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var verbose bool
var debug bool
var policyFile string

// the policy in effect, set before any command runs
var policy *config.Policy

func openStore(dir string) (*keystore.Store, error) {
	store := keystore.NewStore(keystore.NewNativeFs(dir), policy)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("can't open %s as key store: %w", dir, err)
	}
	return store, nil
}

func lookupKey(store *keystore.Store, name string) (*keystore.Entry, error) {
	e := store.Get(name)
	if e == nil {
		e = store.ByFingerprint(name)
	}
	if e == nil {
		return nil, fmt.Errorf("no key with alias or fingerprint '%s'", name)
	}
	return e, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "a LOT more verbose output (overrides -v)")
	rootCmd.PersistentFlags().StringVarP(&policyFile, "policy", "p", "", "crypto policy file (YAML or JSON)")

	cmdDoc := cobra.Command{
		Use:   "doc",
		Short: "Show Documentation",
		Long:  "Get help on various topics.",
	}

	cmdDoc.AddCommand(&cobra.Command{
		Use:       "example (policy)",
		Short:     "Show example policy file",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"policy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.GetConfigurator(1)
			if err != nil {
				return err
			}
			if len(args) == 1 && args[0] != "policy" {
				cmd.Help()
				return fmt.Errorf("unknown example argument '%s'", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Example())
			return nil
		},
	})

	rootCmd.AddCommand(&cmdDoc)
	rootCmd.AddCommand(newFingerprintCmd())
	rootCmd.AddCommand(newSignCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newMacCmd())
	rootCmd.AddCommand(newKexEncryptCmd())
}
