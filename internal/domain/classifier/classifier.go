// Package classifier decides how an inbound message identifier should be
// matched against local email logs. The pipeline accepts both self-generated
// tracking ids and provider-assigned ids as the join key, so the lookup
// strategy is chosen from the identifier's shape instead of ad hoc prefix
// checks scattered through call sites.
package classifier

import (
	"regexp"
	"strings"
)

type Kind string

const (
	KindProviderNative Kind = "provider_native"
	KindInternal       Kind = "internal"
	KindAmbiguous      Kind = "ambiguous"
)

type Strategy string

const (
	StrategyProviderLookup Strategy = "provider_lookup"
	StrategyInternalLookup Strategy = "internal_lookup"
	StrategyDualLookup     Strategy = "dual_lookup"
)

type Classification struct {
	Kind     Kind
	Strategy Strategy
}

// InternalPrefix marks identifiers minted by the send path.
const InternalPrefix = "trk_"

// Provider-native ids are hyphen-joined hex segments terminated by an
// all-digit suffix, e.g. 0100018d1234abcd-aaaa-bbbb-cccc-ddddeeeeffff-000000.
var providerNativePattern = regexp.MustCompile(`^[0-9a-f]+(?:-[0-9a-f]+)+-[0-9]+$`)

// Classify never fails: identifiers matching neither namespace come back
// ambiguous with a dual-lookup strategy (internal first, then provider).
func Classify(id string) Classification {
	if strings.HasPrefix(id, InternalPrefix) {
		return Classification{Kind: KindInternal, Strategy: StrategyInternalLookup}
	}
	if providerNativePattern.MatchString(id) {
		return Classification{Kind: KindProviderNative, Strategy: StrategyProviderLookup}
	}
	return Classification{Kind: KindAmbiguous, Strategy: StrategyDualLookup}
}
