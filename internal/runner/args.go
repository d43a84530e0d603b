package runner

// ExtraArg is one pass-through command-line flag with an optional value.
// Extras exist for forward compatibility: flags unknown to this code are
// handed to the external process verbatim, in insertion order.
type ExtraArg struct {
	Flag  string
	Value *string
}

// StringValue returns a pointer suitable for ExtraArg.Value.
func StringValue(s string) *string {
	return &s
}

// AppendExtras appends the extra flags to an argument list.
func AppendExtras(args []string, extras []ExtraArg) []string {
	for _, e := range extras {
		args = append(args, e.Flag)
		if e.Value != nil {
			args = append(args, *e.Value)
		}
	}
	return args
}
