package cli

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wokdav/sshcrypto/logging"
	"github.com/wokdav/sshcrypto/sshcrypto/hmac"

	"github.com/spf13/cobra"
)

var errSignatureMismatch = errors.New("signature does not verify")

func newFingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <dir>",
		Short: "List the keys of a key directory",
		Long:  "Goes through a key folder and prints alias and MD5 fingerprint of every RSA key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			for _, alias := range store.Aliases() {
				e := store.Get(alias)
				kind := "public"
				if e.Key.HasPrivate() {
					kind = "private"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", alias, kind, e.Key.Fingerprint(0))
			}
			return nil
		},
	}
}

func newSignCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "sign <dir> <key> <file>",
		Short: "Sign a file with ssh-rsa",
		Long: `Signs a file with a private key of the key folder. The key is named by
alias or fingerprint. The base64 encoded signature blob is printed.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			e, err := lookupKey(store, args[1])
			if err != nil {
				return err
			}
			if !e.Key.Complete() {
				return fmt.Errorf("key '%s' has no private part", e.Alias)
			}

			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}

			sig, err := e.Key.Sign(data)
			if err != nil {
				return err
			}
			encoded := base64.StdEncoding.EncodeToString(sig)
			logging.Infof("signed %d bytes with %s", len(data), e.Key.Fingerprint(0))

			if write {
				name := e.Alias + ".sig"
				if err := store.WriteFile(name, []byte(encoded+"\n")); err != nil {
					return err
				}
				logging.Infof("signature written to %s", name)
			}

			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "also store the signature as <alias>.sig in the key folder")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir> <key> <file> <signature>",
		Short: "Verify an ssh-rsa signature",
		Long:  "Verifies a base64 encoded signature blob over a file. Exits with status 1 if it does not verify.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			e, err := lookupKey(store, args[1])
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args[3]))
			if err != nil {
				return fmt.Errorf("signature is not base64: %w", err)
			}

			if !e.Key.VerifySignature(data, sig) {
				fmt.Fprintln(cmd.OutOrStdout(), "FAILED")
				return errSignatureMismatch
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func newMacCmd() *cobra.Command {
	var bugCompat bool
	var seq int64
	cmd := &cobra.Command{
		Use:   "mac <algorithm> <hex-key> <file>",
		Short: "Compute an SSH MAC",
		Long: `Computes the MAC of a file with the named algorithm and prints it in hex.
With --seq the file is treated as a transport packet and the MAC covers the
sequence number as well.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := policy.MAC(args[0], bugCompat)
			if err != nil {
				return err
			}
			key, err := hex.DecodeString(args[1])
			if err != nil {
				return fmt.Errorf("key is not hex: %w", err)
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}

			if len(key) != alg.KeyLen {
				logging.Warningf("%s expects a %d byte key, got %d", alg.TextName(), alg.KeyLen, len(key))
			}

			ctx := hmac.New(alg)
			defer ctx.Close()
			ctx.SetKey(key)

			var mac []byte
			if seq >= 0 {
				mac, err = ctx.PacketMAC(uint32(seq), data)
			} else {
				mac, err = ctx.Sum(data)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(mac))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&bugCompat, "bug-compatible", "b", false, "use the variant for peers with 16-byte HMAC-SHA1 keys")
	cmd.Flags().Int64VarP(&seq, "seq", "s", -1, "packet sequence number")
	return cmd
}

func newKexEncryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kex-encrypt <dir> <key> <kex> <hex-secret>",
		Short: "Encrypt an RSA key exchange secret",
		Long:  "OAEP-encrypts a hex encoded shared secret to a transient key as RSA key exchange (RFC 4432) does.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			e, err := lookupKey(store, args[1])
			if err != nil {
				return err
			}
			kex, err := policy.KexAlgorithm(args[2])
			if err != nil {
				return err
			}
			secret, err := hex.DecodeString(args[3])
			if err != nil {
				return fmt.Errorf("secret is not hex: %w", err)
			}

			if e.Key.Bits() < kex.KeyBits {
				logging.Warningf("%s calls for a %d-bit key, '%s' has %d bits", kex.Name, kex.KeyBits, e.Alias, e.Key.Bits())
			}

			ct, err := kex.Encrypt(rand.Reader, e.Key, secret)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(ct))
			return nil
		},
	}
}
