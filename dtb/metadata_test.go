package dtb

import (
	"testing"
)

func expectTokens(t *testing.T, dts string, board string, desc1 string, desc2 string) {
	tokens := ExtractTokens(dts)
	if tokens.Board != board {
		t.Fatalf("Expected board %q, got %q", board, tokens.Board)
	}
	if tokens.Desc1 != desc1 {
		t.Fatalf("Expected desc1 %q, got %q", desc1, tokens.Desc1)
	}
	if tokens.Desc2 != desc2 {
		t.Fatalf("Expected desc2 %q, got %q", desc2, tokens.Desc2)
	}
}

func TestExtractTokens_Full(t *testing.T) {
	dts := `/dts-v1/;

/ {
	compatible = "google,zuma";
	description = "B0,IPOP";
};
`
	expectTokens(t, dts, "zuma", "b0", "ipop")
}

func TestExtractTokens_CompatibleNoComma(t *testing.T) {
	expectTokens(t, `compatible = "zuma"; description = "B0,IPOP";`, "zuma", "b0", "ipop")
}

func TestExtractTokens_MissingCompatible(t *testing.T) {
	expectTokens(t, `description = "Foo";`, "unknown", "foo", "unk")
}

func TestExtractTokens_MissingDescription(t *testing.T) {
	expectTokens(t, `compatible = "google,zuma";`, "zuma", "unk", "unk")
}

func TestExtractTokens_Nothing(t *testing.T) {
	expectTokens(t, "total garbage \x00\x01\x02", "unknown", "unk", "unk")
}

func TestExtractTokens_FirstOccurrenceWins(t *testing.T) {
	dts := `
	compatible = "google,zuma";
	child {
		compatible = "google,other";
		description = "A1,SECOND";
	};
`
	// Child node fields are never consulted, only the first occurrence
	expectTokens(t, dts, "zuma", "a1", "second")
}

func TestExtractTokens_Whitespace(t *testing.T) {
	expectTokens(t, "compatible=\"google,zuma\";\ndescription\t =\t \"B0,IPOP\";", "zuma", "b0", "ipop")
}

func TestExtractTokens_KeyWithoutAssignment(t *testing.T) {
	// A bare key mention must not shadow the real assignment further on
	dts := `compatible-list of things; compatible = "google,zuma";`
	expectTokens(t, dts, "zuma", "unk", "unk")
}

func TestExtractTokens_UnterminatedValue(t *testing.T) {
	expectTokens(t, `compatible = "google,zuma`, "unknown", "unk", "unk")
}

func TestExtractTokens_EmptyDescriptionSegments(t *testing.T) {
	expectTokens(t, `description = ",IPOP";`, "unknown", "unk", "ipop")
	expectTokens(t, `description = "B0,";`, "unknown", "b0", "unk")
	expectTokens(t, `description = "";`, "unknown", "unk", "unk")
}

func TestExtractTokens_DescriptionExtraSegments(t *testing.T) {
	// Anything past the second comma segment is ignored
	expectTokens(t, `description = "B0,IPOP,extra,bits";`, "unknown", "b0", "ipop")
}

func TestExtractTokens_CompatibleMultipleCommas(t *testing.T) {
	// Everything after the first comma is the board token
	expectTokens(t, `compatible = "google,zuma,pro";`, "zuma,pro", "unk", "unk")
}

func TestQuotedValue_TrimsNothing(t *testing.T) {
	value, ok := quotedValue(`description = " B0 , IPOP ";`, "description")
	if !ok {
		t.Fatalf("Expected to find description")
	}
	// quotedValue returns the raw value, trimming happens per token
	if value != " B0 , IPOP " {
		t.Fatalf("Expected raw value preserved, got %q", value)
	}
}
