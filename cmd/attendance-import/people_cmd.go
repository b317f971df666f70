package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/attendance-sync/pkg/jibble"
)

type personLine struct {
	Type string `json:"type"`
	jibble.Person
}

func newPeopleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "people",
		Short: "List people in the Jibble workspace, one JSON line each",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeople(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runPeople(ctx context.Context, w io.Writer) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	client, err := a.jibbleClient()
	if err != nil {
		return err
	}
	people, err := client.ListPeople(ctx)
	if err != nil {
		return withCode(exitSource, err)
	}
	return writePeople(w, people)
}

func writePeople(w io.Writer, people []jibble.Person) error {
	out := newLineWriter(w)
	for _, p := range people {
		if err := out.write(personLine{Type: "person", Person: p}); err != nil {
			return err
		}
	}
	return nil
}
