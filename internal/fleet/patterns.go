package fleet

import "regexp"

// Console line patterns. Lines arrive with the provider's HTML markup
// around the log prefix.
var (
	DonePattern     = regexp.MustCompile(`\[Server thread/INFO\](?:</span>)?(?: \[minecraft/DedicatedServer\])?: Done \(\d+\.\d{3}s\)!`)
	SavedPattern    = regexp.MustCompile(`Saved the game`)
	StoppingPattern = regexp.MustCompile(`\[Server thread/INFO\](?:</span>)?(?: \[[^\]]+\])?: Stopping (?:the )?server`)
)
