package verbs

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	List  = VerbValue("list")
	Send  = VerbValue("send")
	View  = VerbValue("view")
	Serve = VerbValue("serve")
)

// Empty type to represent the _type_ Verb. Genesis is to support a key in a Context
type VerbKey struct{}

// Verb is a global instance of the VerbKey type
var Verb = VerbKey{}

// Will represent a specific Verb (list, send, view, ...)
type VerbValue string

func (v VerbValue) String() string {
	return string(v)
}

// ExactlyOneScreen is an Args validator for commands that operate on one
// named screen.
func ExactlyOneScreen(names []string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected one screen name, one of %v", names)
		}
		return nil
	}
}
