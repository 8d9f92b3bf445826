// Package resolver answers "what is the current configuration for category
// C": cache first, then the persisted store with normalization, validation
// and environment overrides applied, then schema defaults as the final
// fallback. It also fronts validated writes, cache administration and audit
// history for the layers above.
package resolver
