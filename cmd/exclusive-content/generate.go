package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Elias8833/webmonetization/internal/embed"
	"github.com/Elias8833/webmonetization/internal/exclusive"
	"github.com/Elias8833/webmonetization/internal/models"
)

type generateOptions struct {
	pointer   string
	verifier  string
	plaintext string
	file      string
	scriptSrc string
	asJSON    bool
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Encrypt content and print the embed script",
	Example: `  exclusive-content generate --pointer '$spsp.example.com/alice' \
    --verifier https://verifier.example.com --plaintext 'Hello World'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd.OutOrStdout(), cmd.InOrStdin(), genOpts)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genOpts.pointer, "pointer", "", "payment pointer, e.g. $spsp.example.com/alice")
	f.StringVar(&genOpts.verifier, "verifier", "", "verifier URL, e.g. https://verifier.example.com")
	f.StringVar(&genOpts.plaintext, "plaintext", "", "content to encrypt")
	f.StringVarP(&genOpts.file, "file", "f", "", "read content from a file, - for stdin")
	f.StringVar(&genOpts.scriptSrc, "script-src", embed.DefaultScriptSrc, "module imported by the embed script")
	f.BoolVar(&genOpts.asJSON, "json", false, "print the payload and script as JSON")
	_ = generateCmd.MarkFlagRequired("pointer")
	_ = generateCmd.MarkFlagRequired("verifier")
	generateCmd.MarkFlagsMutuallyExclusive("plaintext", "file")
}

type generateOutput struct {
	ProxyPaymentPointer string                  `json:"proxyPaymentPointer"`
	Payload             models.EncryptedPayload `json:"payload"`
	Script              string                  `json:"script"`
}

func runGenerate(out io.Writer, in io.Reader, opts generateOptions) error {
	plaintext, err := readPlaintext(in, opts)
	if err != nil {
		return err
	}

	req := models.GenerationRequest{
		PaymentPointer: opts.pointer,
		VerifierURL:    opts.verifier,
		Plaintext:      plaintext,
	}
	req.Normalize()

	payload, err := exclusive.NewGenerator(exclusive.WithLogger(logger.Named("crypto"))).Generate(req)
	if err != nil {
		return err
	}

	script, err := embed.NewRenderer(opts.scriptSrc).Render(req, payload)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(generateOutput{
			ProxyPaymentPointer: embed.ProxyPaymentPointer(req.VerifierURL, req.PaymentPointer),
			Payload:             payload,
			Script:              script,
		})
	}

	_, err = fmt.Fprintf(out, "Nonce:           %s\nCipher text:     %s\nCipher verifier: %s\nInit vector:     %s\n\n%s\n",
		payload.Nonce, payload.CipherText, payload.CipherVerifier, payload.InitializationVector, script)
	return err
}

func readPlaintext(in io.Reader, opts generateOptions) (string, error) {
	switch opts.file {
	case "":
		return opts.plaintext, nil
	case "-":
		data, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(opts.file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("content file %s does not exist", opts.file)
			}
			return "", fmt.Errorf("failed to read content file: %w", err)
		}
		return string(data), nil
	}
}
