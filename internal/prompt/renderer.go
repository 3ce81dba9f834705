// Package prompt renders the system/user message pair sent to the external
// fact-retrieval API from file-based templates.
package prompt

import (
	"embed"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/quantfolio/fundfacts/internal/model"
)

//go:embed templates
var templateFS embed.FS

// Renderer holds the loaded prompt artifacts. Templates are immutable after
// load, so a single Renderer is safe for unlimited concurrent use.
type Renderer struct {
	system string
	single string
	batch  string
}

var (
	defaultOnce     sync.Once
	defaultRenderer *Renderer
	defaultErr      error
)

// Default returns the process-wide Renderer, loading the embedded templates
// exactly once.
func Default() (*Renderer, error) {
	defaultOnce.Do(func() {
		defaultRenderer, defaultErr = NewRenderer()
	})
	return defaultRenderer, defaultErr
}

// NewRenderer loads the embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{}
	for _, f := range []struct {
		path string
		dst  *string
	}{
		{"templates/system.txt", &r.system},
		{"templates/fund_single.tmpl", &r.single},
		{"templates/fund_batch.tmpl", &r.batch},
	} {
		raw, err := templateFS.ReadFile(f.path)
		if err != nil {
			return nil, eris.Wrapf(err, "prompt: read %s", f.path)
		}
		*f.dst = string(raw)
	}
	return r, nil
}

// Render produces the system and user messages for the given funds. The
// single-fund template is used for one fund, the batch template otherwise.
// Zero funds is a hard error: an empty prompt must never reach the API.
func (r *Renderer) Render(funds []model.FundIdentity) (system, user string, err error) {
	switch {
	case len(funds) == 0:
		return "", "", eris.New("prompt: no funds to render")
	case len(funds) == 1:
		user = render(r.single, fundVars(funds[0], 0))
	default:
		globals := map[string]string{"fund_count": strconv.Itoa(len(funds))}
		user = render(expandEach(r.batch, funds), globals)
	}
	return r.system, user, nil
}

var (
	eachRe = regexp.MustCompile(`(?s)\{\{#each funds\}\}(.*?)\{\{/each\}\}`)
	condRe = regexp.MustCompile(`(?s)\{\{#if (\w+)\}\}(.*?)\{\{/if\}\}`)
	varRe  = regexp.MustCompile(`\{\{(\w+)\}\}`)
)

// fundVars maps one fund's fields to template variable names. index is
// 1-based inside loop blocks; 0 means no index variable.
func fundVars(f model.FundIdentity, index int) map[string]string {
	vars := map[string]string{
		"name":        f.Name,
		"scheme_name": f.OfficialName,
		"amfi_code":   f.RegistryCode,
		"isin":        f.ISIN,
	}
	if index > 0 {
		vars["index"] = strconv.Itoa(index)
	}
	return vars
}

// expandEach repeats each loop block once per fund, resolving that fund's
// variables inside the repeated content.
func expandEach(tmpl string, funds []model.FundIdentity) string {
	return eachRe.ReplaceAllStringFunc(tmpl, func(block string) string {
		inner := eachRe.FindStringSubmatch(block)[1]
		var b strings.Builder
		for i, f := range funds {
			b.WriteString(render(inner, fundVars(f, i+1)))
		}
		return b.String()
	})
}

// render resolves conditionals then substitutes variables. Any token whose
// variable is absent becomes the literal "N/A"; unresolved tokens never
// leak into a request.
func render(tmpl string, vars map[string]string) string {
	out := condRe.ReplaceAllStringFunc(tmpl, func(block string) string {
		m := condRe.FindStringSubmatch(block)
		if present(vars[m[1]]) {
			return m[2]
		}
		return ""
	})
	return varRe.ReplaceAllStringFunc(out, func(tok string) string {
		name := varRe.FindStringSubmatch(tok)[1]
		if v := vars[name]; present(v) {
			return v
		}
		return "N/A"
	})
}

func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "N/A"
}
