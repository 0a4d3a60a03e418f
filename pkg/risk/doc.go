// Package risk classifies governed agent actions into severity levels.
//
// Classification is keyword based. The action, the resource and a string
// form of the request context are lower-cased and joined into one haystack,
// which is tested against four keyword tiers from most to least severe. The
// first tier with a hit decides the level; with no hit the level is Medium.
//
//	level := risk.Classify("deploy", "svc/prod-api", nil)   // High
//	class := risk.ActionClass("deploy", level)              // "deploy"
//
// Classify is the single source of truth for severity. Rule matching, rate
// limit selection and decision recording consume its output and never
// re-derive it.
package risk
