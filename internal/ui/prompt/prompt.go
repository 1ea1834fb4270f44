package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the user to confirm an action before it runs
type Prompter interface {
	// Confirm requires the user to type expectedValue back to proceed
	Confirm(message string, expectedValue string) (bool, error)
}

// StandardPrompter implements Prompter over explicit input/output streams
type StandardPrompter struct {
	reader io.Reader
	writer io.Writer
}

// Creates a new StandardPrompter with the given input and output streams
func NewStandardPrompter(in io.Reader, out io.Writer) *StandardPrompter {
	return &StandardPrompter{
		reader: in,
		writer: out,
	}
}

// Confirm requires the user to type expectedValue back to proceed. EOF on
// the input stream counts as declining.
func (p *StandardPrompter) Confirm(message string, expectedValue string) (bool, error) {
	if expectedValue == "" {
		return false, fmt.Errorf("expected confirmation value cannot be empty")
	}

	fmt.Fprintln(p.writer, message)
	fmt.Fprintf(p.writer, "To confirm, please type '%s': ", expectedValue)

	reader := bufio.NewReader(p.reader)
	input, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("error reading user input: %w", err)
	}

	cleanedInput := strings.TrimSpace(input)

	return cleanedInput == expectedValue, nil
}
