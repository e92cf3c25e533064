package cli

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/artiart/lazymint/mechanisms/evm"
)

// SelectorsResult lists the identifiers the zone and ledger answer with.
type SelectorsResult struct {
	ZoneName       string            `json:"zoneName"`
	SchemaID       uint64            `json:"schemaId"`
	AuthorizeOrder string            `json:"authorizeOrder"`
	ValidateOrder  string            `json:"validateOrder"`
	Interfaces     map[string]string `json:"interfaces"`
}

// Text renders the result for terminal output.
func (r SelectorsResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "zone:           %s (schema %d)\n", r.ZoneName, r.SchemaID)
	fmt.Fprintf(&b, "authorizeOrder: %s\n", r.AuthorizeOrder)
	fmt.Fprintf(&b, "validateOrder:  %s\n", r.ValidateOrder)
	for _, name := range []string{"erc165", "zone", "erc1155", "erc1155MetadataURI"} {
		fmt.Fprintf(&b, "%-15s %s\n", name+":", r.Interfaces[name])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewSelectorsCommand creates the selectors command.
func NewSelectorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "selectors",
		Short:         "Print zone callback selectors and supported interface ids",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(rootOpts, cmd).Success(Selectors())
		},
	}
}

// Selectors returns the zone's acknowledgement values and interface ids.
func Selectors() SelectorsResult {
	return SelectorsResult{
		ZoneName:       evm.ZoneName,
		SchemaID:       evm.SchemaID,
		AuthorizeOrder: evm.AuthorizeOrderSelector.String(),
		ValidateOrder:  evm.ValidateOrderSelector.String(),
		Interfaces: map[string]string{
			"erc165":             hexutil.Encode(evm.InterfaceIDERC165[:]),
			"zone":               hexutil.Encode(evm.InterfaceIDZone[:]),
			"erc1155":            hexutil.Encode(evm.InterfaceIDERC1155[:]),
			"erc1155MetadataURI": hexutil.Encode(evm.InterfaceIDERC1155MetadataURI[:]),
		},
	}
}
