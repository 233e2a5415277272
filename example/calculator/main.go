// Command calculator runs calculator.feature against a small calculator.
//
//	go run ./example/calculator run example/calculator/calculator.feature
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chriserin/pickle"
)

type calculator struct {
	stack []float64
}

func (c *calculator) push(n float64) {
	c.stack = append(c.stack, n)
}

func (c *calculator) apply(op string) error {
	if len(c.stack) < 2 {
		return fmt.Errorf("%s needs two operands, have %d", op, len(c.stack))
	}
	a, b := c.stack[len(c.stack)-2], c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-2]
	switch op {
	case "+":
		c.push(a + b)
	case "-":
		c.push(a - b)
	case "*":
		c.push(a * b)
	case "/":
		if b == 0 {
			return fmt.Errorf("division by zero")
		}
		c.push(a / b)
	default:
		return fmt.Errorf("unknown operator %q", op)
	}
	return nil
}

func calc(c *pickle.Context) *calculator {
	v, _ := c.Get("calculator")
	return v.(*calculator)
}

func main() {
	s := pickle.New()

	s.DefineParameterType("op", `[-+*/]`, func(raw string) (any, error) {
		return raw, nil
	})

	s.BeforeScenario(func(c *pickle.Context, sc *pickle.Scenario) error {
		c.Set("calculator", &calculator{})
		return nil
	})

	s.Step("a fresh calculator", func(c *pickle.Context, _ ...any) error {
		c.Set("calculator", &calculator{})
		return nil
	})
	s.Step("I enter {decimal}", func(c *pickle.Context, args ...any) error {
		calc(c).push(args[0].(float64))
		return nil
	})
	s.Step("I press {op}", func(c *pickle.Context, args ...any) error {
		return calc(c).apply(args[0].(string))
	})
	s.StepRegex(`^I enter the numbers ([\d ,]+)$`, func(c *pickle.Context, args ...any) error {
		for _, field := range strings.Split(args[0].(string), ",") {
			n, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return err
			}
			calc(c).push(n)
		}
		return nil
	})
	s.Step("the result is {decimal}", func(c *pickle.Context, args ...any) error {
		stack := calc(c).stack
		if len(stack) == 0 {
			return fmt.Errorf("the stack is empty")
		}
		if got := stack[len(stack)-1]; got != args[0].(float64) {
			return fmt.Errorf("expected %v, got %v", args[0], got)
		}
		return nil
	})
	s.Step("the calculator warms up", func(c *pickle.Context, _ ...any) error {
		select {
		case <-time.After(10 * time.Millisecond):
			return nil
		case <-c.Done():
			return c.Err()
		}
	}, pickle.StepOptions{Timeout: time.Second})

	s.AfterFeature(func(ctx context.Context, f *pickle.Feature, o *pickle.FeatureOutcome) error {
		s.Logger().Info("calculator feature finished", "status", o.Status.String())
		return nil
	})

	pickle.Main(s)
}
