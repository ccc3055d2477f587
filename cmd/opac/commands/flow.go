package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"opacbridge/internal/opac"

	"github.com/antzucaro/matchr"
)

// minOptionSimilarity is the Jaro-Winkler similarity a --pick label needs
// to select an option.
const minOptionSimilarity = 0.7

// chooser selects one of the options of a result that needs a selection.
type chooser func(res opac.ActionResult) (opac.Token, error)

// drive runs a flow until it resolves.
func drive(ctx context.Context, flow *opac.Flow, choose chooser) (opac.ActionResult, error) {
	res, err := flow.Begin(ctx)
	for err == nil && res.Status == opac.StatusSelectionNeeded {
		var key opac.Token
		key, err = choose(res)
		if err != nil {
			break
		}
		res, err = flow.Resume(ctx, key)
	}
	return res, err
}

// bestOption returns the option whose label is most similar to label.
func bestOption(options []opac.Option, label string) (opac.Option, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	var best opac.Option
	var bestSimilarity float64
	for _, o := range options {
		similarity := matchr.JaroWinkler(label, strings.ToLower(o.Label), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = o
		}
	}
	return best, bestSimilarity >= minOptionSimilarity
}

func pickByLabel(label string) chooser {
	return func(res opac.ActionResult) (opac.Token, error) {
		option, ok := bestOption(res.Options, label)
		if !ok {
			labels := make([]string, len(res.Options))
			for i, o := range res.Options {
				labels[i] = fmt.Sprintf("'%s'", o.Label)
			}
			return "", fmt.Errorf("no option matches '%s', expected one of %s", label, strings.Join(labels, ", "))
		}
		return option.Key, nil
	}
}

// promptChoice lists the options on out and reads the number of one from in.
func promptChoice(in *bufio.Reader, out io.Writer) chooser {
	return func(res opac.ActionResult) (opac.Token, error) {
		if res.Message != "" {
			fmt.Fprintln(out, res.Message)
		}
		for i, o := range res.Options {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, o.Label)
		}
		for {
			fmt.Fprint(out, "> ")
			line, err := readLine(in)
			if err != nil {
				return "", err
			}
			n, convErr := strconv.Atoi(line)
			if convErr == nil && n >= 1 && n <= len(res.Options) {
				return res.Options[n-1].Key, nil
			}
			fmt.Fprintf(out, "enter a number between 1 and %d\n", len(res.Options))
		}
	}
}

func printResult(out io.Writer, res opac.ActionResult) {
	if res.Message == "" {
		fmt.Fprintf(out, "%s: %s\n", res.Kind, res.Status)
		return
	}
	fmt.Fprintf(out, "%s: %s (%s)\n", res.Kind, res.Status, res.Message)
}
