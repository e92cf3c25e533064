package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/artiart/lazymint"
	"github.com/artiart/lazymint/mechanisms/evm"
	evmsigner "github.com/artiart/lazymint/signers/evm"
)

// EnvSignerKey supplies the signing key when --key is not given.
const EnvSignerKey = "SIGNER_PRIVATE_KEY"

// VoucherResult is the output of voucher sign and voucher decode.
type VoucherResult struct {
	Voucher   lazymint.Voucher `json:"voucher"`
	ExtraData hexutil.Bytes    `json:"extraData"`
	Signer    *common.Address  `json:"signer,omitempty"`
}

// Text renders the result for terminal output.
func (r VoucherResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "owner:     %s\n", r.Voucher.Owner.Hex())
	fmt.Fprintf(&b, "tokenId:   %s\n", lazymint.BigOrZero(r.Voucher.TokenID))
	fmt.Fprintf(&b, "amount:    %s\n", lazymint.BigOrZero(r.Voucher.Amount))
	fmt.Fprintf(&b, "uri:       %s\n", r.Voucher.URI)
	fmt.Fprintf(&b, "signature: %s\n", hexutil.Encode(r.Voucher.Signature))
	if r.Signer != nil {
		fmt.Fprintf(&b, "signer:    %s\n", r.Signer.Hex())
	}
	fmt.Fprintf(&b, "extraData: %s", r.ExtraData.String())
	return b.String()
}

// domainFlags select the signing domain shared by sign and recover.
type domainFlags struct {
	network string
	chainID uint64
	ledger  string
}

func (d *domainFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.network, "network", evm.DefaultNetwork, "network identifier (e.g. eip155:31337, base-sepolia)")
	cmd.Flags().Uint64Var(&d.chainID, "chain-id", 0, "chain id; overrides --network")
	cmd.Flags().StringVar(&d.ledger, "ledger", "", "ledger address (the verifying contract)")
	_ = cmd.MarkFlagRequired("ledger")
}

func (d *domainFlags) domain() (evm.TypedDataDomain, error) {
	ledger, err := evm.ParseAddress(d.ledger)
	if err != nil {
		return evm.TypedDataDomain{}, fmt.Errorf("--ledger: %w", err)
	}
	if d.chainID != 0 {
		return evm.VoucherDomain(new(big.Int).SetUint64(d.chainID), ledger), nil
	}
	network, err := evm.GetNetworkConfig(d.network)
	if err != nil {
		return evm.TypedDataDomain{}, err
	}
	return evm.VoucherDomain(network.ChainID, ledger), nil
}

// NewVoucherCommand creates the voucher command group.
func NewVoucherCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voucher",
		Short: "Sign, encode and inspect mint vouchers",
	}

	cmd.AddCommand(newVoucherSignCommand(rootOpts))
	cmd.AddCommand(newVoucherExtraDataCommand(rootOpts))
	cmd.AddCommand(newVoucherDecodeCommand(rootOpts))
	cmd.AddCommand(newVoucherRecoverCommand(rootOpts))

	return cmd
}

type voucherSignOptions struct {
	domainFlags
	key     string
	owner   string
	tokenID string
	amount  string
	uri     string
}

func newVoucherSignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &voucherSignOptions{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a voucher and print it with its order extraData",
		Long: `Sign a voucher under the ledger's EIP-712 domain.

The key is read from --key or the SIGNER_PRIVATE_KEY environment variable.
The printed extraData is what an order carries for the zone to mint.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVoucherSign(cmd.Context(), rootOpts, opts, cmd)
		},
	}

	opts.domainFlags.register(cmd)
	cmd.Flags().StringVar(&opts.key, "key", "", "hex private key of the authorized signer")
	cmd.Flags().StringVar(&opts.owner, "owner", "", "address the voucher is issued to")
	cmd.Flags().StringVar(&opts.tokenID, "token-id", "", "token id, decimal or 0x-hex")
	cmd.Flags().StringVar(&opts.amount, "amount", "1", "amount, decimal or 0x-hex")
	cmd.Flags().StringVar(&opts.uri, "uri", "", "metadata URI bound into the voucher")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("token-id")

	return cmd
}

func runVoucherSign(ctx context.Context, rootOpts *RootOptions, opts *voucherSignOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	if ctx == nil {
		ctx = context.Background()
	}

	voucher, err := opts.voucher()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err)
	}
	domain, err := opts.domain()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err)
	}

	key := opts.key
	if key == "" {
		key = os.Getenv(EnvSignerKey)
	}
	if key == "" {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Errorf("no signing key: pass --key or set %s", EnvSignerKey))
	}
	signer, err := evmsigner.NewVoucherSignerFromPrivateKey(key)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err)
	}
	formatter.VerboseLog("signing as %s for ledger %s on chain %s", signer.Address().Hex(), domain.VerifyingContract, domain.ChainID)

	signed, err := signer.SignVoucher(ctx, voucher, domain)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, err)
	}
	extraData, err := evm.EncodeVoucher(signed)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, err)
	}

	address := signer.Address()
	return formatter.Success(VoucherResult{Voucher: signed, ExtraData: extraData, Signer: &address})
}

func (o *voucherSignOptions) voucher() (lazymint.Voucher, error) {
	owner, err := evm.ParseAddress(o.owner)
	if err != nil {
		return lazymint.Voucher{}, fmt.Errorf("--owner: %w", err)
	}
	tokenID, err := lazymint.ParseUint256(o.tokenID)
	if err != nil {
		return lazymint.Voucher{}, fmt.Errorf("--token-id: %w", err)
	}
	amount, err := lazymint.ParseUint256(o.amount)
	if err != nil {
		return lazymint.Voucher{}, fmt.Errorf("--amount: %w", err)
	}
	return lazymint.Voucher{Owner: owner, TokenID: tokenID, Amount: amount, URI: o.uri}, nil
}

func newVoucherExtraDataCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extradata [voucher.json|-]",
		Short: "ABI-encode a signed voucher as order extraData",
		Long: `Read a signed voucher as JSON from a file, or from stdin when the
argument is "-" or omitted, and print its extraData encoding.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			voucher, err := readVoucher(cmd, args)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err)
			}
			extraData, err := evm.EncodeVoucher(voucher)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeInvalidInput, err)
			}
			return formatter.Success(VoucherResult{Voucher: voucher, ExtraData: extraData})
		},
	}
}

func newVoucherDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "decode <extraData>",
		Short:         "Decode order extraData into a voucher",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			extraData, err := hexutil.Decode(strings.TrimSpace(args[0]))
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, fmt.Errorf("extraData: %w", err))
			}
			voucher, err := evm.DecodeVoucher(extraData)
			if err != nil {
				return formatter.Fail(ExitFailure, lazymint.ErrCodeDecodeFailure, err)
			}
			return formatter.Success(VoucherResult{Voucher: voucher, ExtraData: extraData})
		},
	}
}

func newVoucherRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &domainFlags{}

	cmd := &cobra.Command{
		Use:   "recover [voucher.json|-]",
		Short: "Recover the address that signed a voucher",
		Long: `Recover the signer of a voucher under the given ledger's domain. A
ledger accepts the voucher only if this is its authorized signer.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			voucher, err := readVoucher(cmd, args)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err)
			}
			domain, err := flags.domain()
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidInput, err)
			}
			signer, err := evm.RecoverVoucherSigner(voucher, domain)
			if err != nil {
				return formatter.Fail(ExitFailure, lazymint.ErrCodeSignatureMismatch, err)
			}
			extraData, err := evm.EncodeVoucher(voucher)
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeInvalidInput, err)
			}
			return formatter.Success(VoucherResult{Voucher: voucher, ExtraData: extraData, Signer: &signer})
		},
	}

	flags.register(cmd)
	return cmd
}

// readVoucher decodes a voucher from the named file, or stdin for "-" or no argument.
func readVoucher(cmd *cobra.Command, args []string) (lazymint.Voucher, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return lazymint.Voucher{}, fmt.Errorf("failed to open voucher: %w", err)
		}
		defer f.Close()
		r = f
	}

	var voucher lazymint.Voucher
	if err := json.NewDecoder(r).Decode(&voucher); err != nil {
		return lazymint.Voucher{}, fmt.Errorf("failed to decode voucher: %w", err)
	}
	return voucher, nil
}
