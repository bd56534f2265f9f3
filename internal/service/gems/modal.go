package gems

// BuildSubmission reconstructs the command line for input collected
// through a modal, so the submission flows through the same run grammar
// as a typed command. The collected text sits after the first newline,
// which keeps its own newlines intact through raw-substring extraction.
func BuildSubmission(gemName string, public bool, text string) string {
	cmd := "run " + gemName
	if public {
		cmd += " --public"
	}
	return cmd + "\n" + text
}
