package main

import (
	"fmt"
	"os"

	"github.com/squareup/planopt/errors"
)

type ExplainCommand struct {
	File  string `arg:"" help:"File containing the plan" type:"existingfile"`
	Input bool   `help:"Print the plan before optimization too"`
}

func (c *ExplainCommand) Run(s *session) error {
	b, err := os.ReadFile(c.File)
	if err != nil {
		return errors.WithStack(err)
	}
	res, err := s.optimize(string(b), c.Input)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, res)
	return errors.WithStack(err)
}
