package core

import "errors"

var (
	// ErrMissingSlot marks a turn that needs clarification before recommending.
	ErrMissingSlot = errors.New("missing slot")
	// ErrGenerationParse marks malformed model output.
	ErrGenerationParse = errors.New("generation parse error")
	// ErrCatalogLookupEmpty marks a ranking pass with no surviving products.
	ErrCatalogLookupEmpty = errors.New("no matching catalog products")
	// ErrExternalService marks a failed LLM or search call.
	ErrExternalService = errors.New("external service failure")
	// ErrDataLoad marks a catalog that cannot be loaded.
	ErrDataLoad = errors.New("data load failure")
	// ErrEmptyUtterance is returned for blank user input.
	ErrEmptyUtterance = errors.New("user message cannot be empty")
)
