// Package evm implements the EVM side of voucher issuance: the EIP-712
// signing domain and voucher hashing, signature recovery, the ABI codec for
// zone extraData payloads, and the selectors and interface identifiers the
// settlement protocol expects.
package evm
