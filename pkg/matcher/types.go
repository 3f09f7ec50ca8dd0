package matcher

import "github.com/praetorian-inc/hypergrep/pkg/types"

// PatternSpec is re-exported so engine callers need a single import.
type PatternSpec = types.PatternSpec
