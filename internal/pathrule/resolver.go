// Package pathrule renders destination directories and filenames from
// templates and a classification. It never touches the filesystem: given
// the same inputs it always produces the same PathDecision.
package pathrule

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tbernier/docroute/internal/config"
	"github.com/tbernier/docroute/internal/model"
)

// Placeholder tokens rendered when a field was not extracted.
const (
	UnknownSupplier = "INCONNU"
	UnknownYear     = "0000"
	UnknownMonth    = "00"
	UnknownDay      = "00"
	UnknownNumber   = "N"
	UnknownAmount   = "0"
)

// Segment length caps after slugging.
const (
	maxSupplierSlug = 60
	maxNumberSlug   = 40
	maxSegment      = 80
)

// Resolver holds the read-only template configuration.
type Resolver struct {
	root            string
	treeTemplate    string
	defaultFilename string
	folderFormats   map[string]string
	rules           config.RoutingRules
	customKeys      map[string]string
}

// NewResolver builds a resolver from the routing configuration.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		root:            cfg.DestinationRoot,
		treeTemplate:    cfg.TreeTemplate,
		defaultFilename: cfg.FilenameFormat,
		folderFormats:   cfg.FolderFormats,
		rules:           cfg.Rules,
		customKeys:      cfg.CustomKeys,
	}
}

// Resolve computes the destination for a classified document. srcName is
// the original filename, used to preserve the extension. The second
// return is false when per-type rules are configured and none of them
// (nor a default rule) provides a directory tree for this type: such
// documents have no computed home and belong in review.
func (r *Resolver) Resolve(c model.Classification, srcName string) (model.PathDecision, bool) {
	tree := r.treeTemplate
	filenameFormat := ""
	ruleName := "default"

	if len(r.rules) > 0 {
		rule, ok := r.rules.ForType(string(c.Type))
		if !ok || strings.TrimSpace(rule.Tree) == "" {
			return model.PathDecision{}, false
		}
		tree = rule.Tree
		filenameFormat = rule.Filename
		ruleName = "rule:" + rule.Type
	}

	values := r.placeholders(c)

	dir := filepath.Join(r.root, filepath.FromSlash(applyTemplate(tree, values)))

	if filenameFormat == "" {
		filenameFormat = r.formatForFolder(dir)
	}
	name := applyTemplate(filenameFormat, values)
	name = strings.Map(func(rn rune) rune {
		if rn == '/' || rn == '\\' {
			return '_'
		}
		return rn
	}, name)

	if ext := filepath.Ext(srcName); ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		name += strings.ToLower(ext)
	}

	return model.PathDecision{
		Dir:      dir,
		Filename: name,
		Rule:     ruleName,
	}, true
}

// formatForFolder returns the filename format configured for the resolved
// directory, matching on trailing path or path component, else the
// default format.
func (r *Resolver) formatForFolder(dir string) string {
	normalized := filepath.ToSlash(dir)
	parts := strings.Split(normalized, "/")

	for pattern, format := range r.folderFormats {
		if pattern == "" || format == "" {
			continue
		}
		p := strings.Trim(filepath.ToSlash(pattern), "/")
		if strings.HasSuffix(normalized, p) {
			return format
		}
		for _, part := range parts {
			if part == p {
				return format
			}
		}
	}
	return r.defaultFilename
}

// placeholders builds the substitution table. Built-in keys win over
// custom keys.
func (r *Resolver) placeholders(c model.Classification) map[string]string {
	values := make(map[string]string, len(r.customKeys)+8)
	for k, v := range r.customKeys {
		if k == "" {
			continue
		}
		if v == "" {
			v = k
		}
		values[k] = Slugify(v, maxSegment)
	}

	ext := c.Extraction

	supplier := UnknownSupplier
	if c.Supplier.Canonical != "" {
		supplier = Slugify(c.Supplier.Canonical, maxSupplierSlug)
	}
	values["fournisseur"] = supplier

	year, month, day := UnknownYear, UnknownMonth, UnknownDay
	if ext.DocumentDate != nil {
		year = ext.DocumentDate.Format("2006")
		month = ext.DocumentDate.Format("01")
		day = ext.DocumentDate.Format("02")
	}
	values["YYYY"] = year
	values["MM"] = month
	values["DD"] = day

	number := UnknownNumber
	if ext.InvoiceNumber != nil {
		number = Slugify(*ext.InvoiceNumber, maxNumberSlug)
	}
	values["numero"] = number

	amount := UnknownAmount
	if ext.Amount != nil {
		amount = strings.ReplaceAll(strconv.FormatFloat(*ext.Amount, 'f', 2, 64), ".", "_")
	}
	values["montant"] = amount

	values["type_doc"] = c.Type.ShortCode()

	return values
}

var unresolvedPlaceholder = regexp.MustCompile(`\{[^}]+\}`)

// applyTemplate substitutes {key} tokens and drops any unknown
// placeholder rather than leaving braces in a path.
func applyTemplate(template string, values map[string]string) string {
	out := template
	for key, value := range values {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	out = unresolvedPlaceholder.ReplaceAllString(out, "")
	return strings.Trim(out, "/\\ ")
}
