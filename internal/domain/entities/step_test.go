package entities_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
)

func TestStep_NamesRoundTrip(t *testing.T) {
	for _, name := range entities.StepSequence() {
		step, err := entities.StepFromName(name)
		assert.NoError(t, err)
		assert.Equal(t, name, step.String())
		assert.True(t, step.IsValid())
	}
}

func TestStepFromName_Unknown(t *testing.T) {
	_, err := entities.StepFromName("eye_exam")
	assert.Error(t, err)
}

func TestStep_Bounds(t *testing.T) {
	assert.False(t, entities.Step(-1).IsValid())
	assert.False(t, entities.Step(entities.StepCount).IsValid())
	assert.Equal(t, entities.StepSchoolDelivery, entities.LastStep())
}
