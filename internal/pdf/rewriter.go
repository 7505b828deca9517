package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-rewriter/internal/pdf/content"
)

// Pair is one find/replace instruction
type Pair struct {
	OriginalText    string `json:"originalText"`
	ReplacementText string `json:"replacementText"`
}

// ApplyResult is the rewritten document plus substitution statistics
type ApplyResult struct {
	Data []byte
	// Substitutions holds the number of replacements made per input pair,
	// zero for pairs with an empty original text.
	Substitutions []int
	PagesChanged  int
}

// Total returns the number of substitutions across all pairs
func (r *ApplyResult) Total() int {
	total := 0
	for _, n := range r.Substitutions {
		total += n
	}
	return total
}

// readContext parses data with pdfcpu in relaxed mode. Encrypted documents are
// rejected since rewriting them would either fail or strip their protection.
func readContext(data []byte, op string) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, classifyReadError(op, err)
	}

	if ctx.Encrypt != nil {
		return nil, newError(ErrorTypeProtected, op, fmt.Errorf("document is encrypted"))
	}

	if err := ctx.EnsurePageCount(); err != nil {
		return nil, newError(ErrorTypeCorruptedData, op, fmt.Errorf("failed to ensure page count: %w", err))
	}

	return ctx, nil
}

// classifyReadError maps pdfcpu read failures onto error types
func classifyReadError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
		return newError(ErrorTypeProtected, op, err)
	}
	return newError(ErrorTypeCorruptedData, op, fmt.Errorf("failed to read PDF context: %w", err))
}

// PageCount returns the number of pages in data
func PageCount(data []byte) (int, error) {
	ctx, err := readContext(data, "page_count")
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// ApplyReplacements rewrites the text operands of every page content stream
func ApplyReplacements(goctx context.Context, data []byte, pairs []Pair) (*ApplyResult, error) {
	rules := make([]content.Rule, 0, len(pairs))
	// index of each pair in the active rule list, -1 when skipped
	ruleOf := make([]int, len(pairs))
	for i, p := range pairs {
		if p.OriginalText == "" {
			ruleOf[i] = -1
			continue
		}
		ruleOf[i] = len(rules)
		rules = append(rules, content.Rule{Old: p.OriginalText, New: p.ReplacementText})
	}

	ctx, err := readContext(data, "apply_replacements")
	if err != nil {
		return nil, err
	}

	rewriter := content.NewRewriter(rules)
	counts := make([]int, len(rules))
	// content streams shared between pages are rewritten once; the value
	// records whether the stream changed
	visited := make(map[int]bool)
	pagesChanged := 0

	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		if err := goctx.Err(); err != nil {
			return nil, err
		}

		changed, err := rewritePage(ctx, rewriter, pageNr, counts, visited)
		if err != nil {
			return nil, err
		}
		if changed {
			pagesChanged++
		}
	}

	var out bytes.Buffer
	if err := api.WriteContext(ctx, &out); err != nil {
		return nil, newError(ErrorTypeCorruptedData, "apply_replacements", fmt.Errorf("failed to write PDF: %w", err))
	}

	result := &ApplyResult{
		Data:          out.Bytes(),
		Substitutions: make([]int, len(pairs)),
		PagesChanged:  pagesChanged,
	}
	for i, ri := range ruleOf {
		if ri >= 0 {
			result.Substitutions[i] = counts[ri]
		}
	}
	return result, nil
}

// rewritePage rewrites each content stream of a page in place. Streams found
// in visited are not touched again.
func rewritePage(ctx *model.Context, rewriter *content.Rewriter, pageNr int, counts []int,
	visited map[int]bool,
) (bool, error) {
	pageDict, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return false, &PDFError{Type: ErrorTypeMalformedPage, Op: "apply_replacements", Page: pageNr, Err: err}
	}
	if pageDict == nil {
		return false, nil
	}

	obj, found := pageDict.Find("Contents")
	if !found || obj == nil {
		return false, nil
	}

	var refs []types.IndirectRef
	switch o := obj.(type) {
	case types.IndirectRef:
		// Contents may point at an array of streams
		if arr, err := ctx.DereferenceArray(o); err == nil && arr != nil {
			refs = indirectRefs(arr)
		} else {
			refs = []types.IndirectRef{o}
		}
	case types.Array:
		refs = indirectRefs(o)
	default:
		return false, nil
	}

	changed := false
	for _, ref := range refs {
		objNr := ref.ObjectNumber.Value()
		if done, seen := visited[objNr]; seen {
			changed = changed || done
			continue
		}
		ok, err := rewriteStream(ctx, rewriter, ref, counts)
		if err != nil {
			return false, &PDFError{Type: ErrorTypeMalformedPage, Op: "apply_replacements", Page: pageNr, Err: err}
		}
		visited[objNr] = ok
		changed = changed || ok
	}
	return changed, nil
}

func indirectRefs(arr types.Array) []types.IndirectRef {
	refs := make([]types.IndirectRef, 0, len(arr))
	for _, o := range arr {
		if ref, ok := o.(types.IndirectRef); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// rewriteStream decodes one content stream, rewrites it and stores it back
// into the cross reference table
func rewriteStream(ctx *model.Context, rewriter *content.Rewriter, ref types.IndirectRef, counts []int) (bool, error) {
	entry, found := ctx.FindTableEntryForIndRef(&ref)
	if !found || entry == nil {
		return false, nil
	}
	sd, ok := entry.Object.(types.StreamDict)
	if !ok {
		return false, nil
	}

	if err := sd.Decode(); err != nil {
		return false, fmt.Errorf("decode content stream %s: %w", ref, err)
	}

	rewritten, streamCounts, err := rewriter.Rewrite(sd.Content)
	if err != nil {
		return false, fmt.Errorf("rewrite content stream %s: %w", ref, err)
	}

	changed := false
	for i, n := range streamCounts {
		counts[i] += n
		changed = changed || n > 0
	}
	if !changed {
		return false, nil
	}

	sd.Content = rewritten
	if err := sd.Encode(); err != nil {
		return false, fmt.Errorf("encode content stream %s: %w", ref, err)
	}
	entry.Object = sd
	return true, nil
}
