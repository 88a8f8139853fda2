// Package doctemplate merges document templates with data from pluggable sources.
//
// A template is a normalized marker stream: literal text in which every
// placeholder key is wrapped by two sentinels. Container-format adapters
// produce this stream from word-processor field codes or spreadsheet
// bookmarks; the engine only sees the stream.
//
//	Dear <doc-template-bookmark>FIELD_CUSTOMER.NAME</doc-template-bookmark>,
//
// # Markers
//
// The key prefix selects the node kind:
//
//	FIELD_<key>[_FMT<pattern>]   value lookup with an optional format pattern
//	IF_<key> ... ENDIF_<key>     conditional body
//	WHILE_<key> ... ENDWHILE_<key>
//	                             iteration over the rows of <key>
//	SORT_<field>[_DESC]          sort key of the innermost enclosing WHILE_
//
// Iteration keys may carry a sub-range, WHILE_ITEMS_SUB1_3, and fields inside
// an iteration may address another row relative to the current one with
// _[N]. A trailing _ALT<digits> is stripped from every key so the same
// placeholder can occur more than once in hosts that forbid duplicate names.
//
// # Basic Usage
//
//	engine := doctemplate.MustNew()
//	tmpl, err := engine.Parse(stream)
//	if err != nil {
//	    return err
//	}
//	out, err := tmpl.Merge(ctx, doctemplate.NewObjectSource(invoice))
//
// A parsed Template is immutable and may be merged concurrently.
//
// # Sources
//
// MergeSource answers field, condition and iteration lookups:
//
//   - ObjectSource resolves dotted paths against structs, maps and getters.
//   - NewExtendedObjectSource adds IF_<path>_EQ_<literal> and _NEQ_ comparisons.
//   - BindingSource binds keys to values and callbacks.
//   - Chain layers sources; the first to answer wins.
//
// # Storage
//
// A Library loads named templates from a TemplateStorage (memory, filesystem,
// postgres or sqlite), parses each once and merges by name:
//
//	storage, _ := doctemplate.OpenStorage("filesystem", "/srv/templates")
//	lib := doctemplate.MustNewLibrary(doctemplate.LibraryConfig{Storage: storage})
//	out, err := lib.Merge(ctx, "invoice", source)
//
// # Configuration
//
// Customize the engine with functional options:
//
//	engine, _ := doctemplate.New(
//	    doctemplate.WithLocale(language.German),
//	    doctemplate.WithSentinels(doctemplate.BracketOpenSentinel, doctemplate.BracketCloseSentinel),
//	    doctemplate.WithLogger(logger),
//	)
//
// or load them from YAML with LoadConfig.
package doctemplate
