// Package errors: typed error codes for the MolForge-Engine platform.
// Codes are grouped by subsystem so that logging and metrics layers can
// emit a single stable label per failure category.
package errors

// ErrorCode uniquely identifies a failure category. The string form is
// stable across releases and safe to use as a metric label.
type ErrorCode string

// ─────────────────────────────────────────────────────────────────────────────
// Common codes (COMMON_*)
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CodeOK is the zero value meaning "no error"; never attached to an AppError.
	CodeOK ErrorCode = "COMMON_000"

	// CodeUnknown classifies errors that carry no AppError in their chain.
	CodeUnknown ErrorCode = "COMMON_001"

	// CodeInternal marks unexpected failures with no more specific code.
	CodeInternal ErrorCode = "COMMON_002"

	// CodeInvalidParam marks rejected caller-supplied values.
	CodeInvalidParam ErrorCode = "COMMON_003"

	// CodeNotImplemented marks a requested variant or feature that has no
	// implementation registered.
	CodeNotImplemented ErrorCode = "COMMON_004"
)

// ─────────────────────────────────────────────────────────────────────────────
// Graph / batch precondition codes (GRAPH_*)
//
// These are fatal contract violations: a malformed batch must fail loudly,
// never be truncated or index-wrapped.
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CodeGraphMalformed marks a structurally invalid fragment or batch
	// (non-contiguous node ranges, mismatched array lengths).
	CodeGraphMalformed ErrorCode = "GRAPH_001"

	// CodeGraphEdgeOutOfRange marks an edge whose sender or receiver index
	// is dangling or crosses a graph boundary.
	CodeGraphEdgeOutOfRange ErrorCode = "GRAPH_002"

	// CodeGraphSpeciesOutOfVocab marks a node species index outside the
	// configured element vocabulary.
	CodeGraphSpeciesOutOfVocab ErrorCode = "GRAPH_003"

	// CodeGraphCapacityExceeded marks a batch whose node, edge, or graph
	// count exceeds the configured pad capacity.
	CodeGraphCapacityExceeded ErrorCode = "GRAPH_004"
)

// ─────────────────────────────────────────────────────────────────────────────
// Model codes (MODEL_*)
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CodeModelConfigInvalid marks a model configuration that fails validation.
	CodeModelConfigInvalid ErrorCode = "MODEL_001"

	// CodeModelParamMissing marks a parameter-tree lookup for a sub-tree or
	// tensor that was never initialised.
	CodeModelParamMissing ErrorCode = "MODEL_002"

	// CodeModelShapeMismatch marks a tensor whose shape does not match the
	// contract at a component boundary.
	CodeModelShapeMismatch ErrorCode = "MODEL_003"

	// CodeModelVariantUnknown marks an encoder or head variant name with no
	// registered implementation.
	CodeModelVariantUnknown ErrorCode = "MODEL_004"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sampling codes (SAMPLE_*)
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CodeSampleRNGMissing marks an evaluation-mode call without an RNG stream.
	CodeSampleRNGMissing ErrorCode = "SAMPLE_001"

	// CodeSampleDegenerateMass marks a probability grid whose stabilised
	// density is entirely zero after normalisation — a reportable anomaly
	// (e.g. too few radial bins for the spatial range), not a silent answer.
	CodeSampleDegenerateMass ErrorCode = "SAMPLE_002"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dataset codes (DATA_*)
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CodeDataParseFailed marks an unreadable or malformed molecule file.
	CodeDataParseFailed ErrorCode = "DATA_001"

	// CodeDataUnknownElement marks an element symbol outside the vocabulary.
	CodeDataUnknownElement ErrorCode = "DATA_002"

	// CodeDataFragmentEmpty marks an attempt to fragment a molecule with no atoms.
	CodeDataFragmentEmpty ErrorCode = "DATA_003"
)

// ─────────────────────────────────────────────────────────────────────────────
// Checkpoint codes (CKPT_*)
// ─────────────────────────────────────────────────────────────────────────────

const (
	// CodeCheckpointNotFound marks a missing workdir, config snapshot, or
	// parameter file.
	CodeCheckpointNotFound ErrorCode = "CKPT_001"

	// CodeCheckpointCorrupt marks a parameter blob that fails to decode.
	CodeCheckpointCorrupt ErrorCode = "CKPT_002"
)

// String returns the stable string form of the code.
func (c ErrorCode) String() string { return string(c) }
