// Package template resolves catalog prompt templates into renderer prompts.
//
// A prompt is a tagged tree ([Node]): a string leaf, a list, an ordered map,
// or an opaque JSON literal (numbers, booleans, null). Catalog files may
// carry either a plain string prompt or an arbitrarily nested JSON object;
// both decode into the same tree.
//
// Resolution is one generic walk ([Substitute]) driven by a replacement
// [Table]. The table for a display name and gender variant carries the
// {name} and {gender} placeholders plus six gender-derived forms:
//
//	{gender_text}             text label
//	{gender_child}            noun
//	{gender_pronoun}          pronoun
//	{gender_possessive}       possessive
//	{gender_object}           object pronoun
//	{gender_full_description} composed descriptive phrase
//
// [Resolver.Resolve] guarantees its output contains none of the known
// placeholder tokens; see [Unresolved]. Raw prompts bypass the catalog and
// are used verbatim via [Raw].
package template
