package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepsNestUnderScenario(t *testing.T) {
	var names []string
	Scenario(t, "ordering", func(t *testing.T) {
		Given(t, "a start", func(t *testing.T) { names = append(names, t.Name()) })
		When(t, "something happens", func(t *testing.T) { names = append(names, t.Name()) })
		Then(t, "it is seen", func(t *testing.T) { names = append(names, t.Name()) })
		And(t, "so is this", func(t *testing.T) { names = append(names, t.Name()) })
	})

	assert.Equal(t, []string{
		"TestStepsNestUnderScenario/Scenario:_ordering/Given_a_start",
		"TestStepsNestUnderScenario/Scenario:_ordering/When_something_happens",
		"TestStepsNestUnderScenario/Scenario:_ordering/Then_it_is_seen",
		"TestStepsNestUnderScenario/Scenario:_ordering/And_so_is_this",
	}, names)
}
