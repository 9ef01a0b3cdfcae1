// Package oracle provides the Oracle SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package oracle

import "github.com/leapstack-labs/portsql/pkg/core"

// Config is the Oracle dialect configuration.
// This is pure data - accessible by both Adapter and Rewriter.
var Config = &core.DialectConfig{
	Name:        "oracle",
	Placeholder: core.PlaceholderNamed,
	Pagination:  core.PaginationOffsetFetch,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormUppercase, // Oracle normalizes unquoted to uppercase
	},
	MaxIdentifierLength: 128,
	InListLimit:         999,
	DualTable:           "DUAL",
	NoOpStatement:       "begin null; end;",
	Upsert:              core.UpsertMerge,
}

// LegacyConfig targets releases without OFFSET/FETCH (11g and older), where
// identifiers are limited to 30 bytes and ranges use ROWNUM.
var LegacyConfig = &core.DialectConfig{
	Name:                "oracle11",
	Placeholder:         Config.Placeholder,
	Pagination:          core.PaginationRowNum,
	Identifiers:         Config.Identifiers,
	MaxIdentifierLength: 30,
	InListLimit:         Config.InListLimit,
	DualTable:           Config.DualTable,
	NoOpStatement:       Config.NoOpStatement,
	Upsert:              Config.Upsert,
}
