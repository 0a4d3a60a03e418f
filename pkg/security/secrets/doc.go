// Package secrets classifies record fields by sensitivity and masks them.
//
// Classification is driven by field names only: the lower-cased name is
// checked for known substrings in four tiers (Restricted, Confidential,
// Internal, Public), most sensitive first. Values are never inspected for
// classification.
//
// Three transformations build on it:
//
//   - ValidateNoPlaintextSecrets reports sensitive fields holding raw values.
//   - RedactSensitiveFields masks a record for logs and audit storage.
//   - AnonymizeForFederation strips sensitive fields at every depth before a
//     record crosses a tenant boundary. CanFederate decides whether such a
//     transfer is allowed at all.
//
// None of these functions encrypt anything. They only classify and mask.
//
// Separately, Resolver expands ${secret:name} references in configuration
// values (database URLs, Redis passwords) from environment variables or a
// mounted secrets directory, so credentials never sit in the config file.
package secrets
