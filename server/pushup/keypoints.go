package pushup

import (
	"errors"
	"fmt"

	"github.com/san-kum/pushup-cv/server/models"
)

var ErrJointNotFound = errors.New("joint not found")

// GetJoint returns the first joint called name.
func GetJoint(joints []models.Joint, name string) (models.Joint, error) {
	if joint, ok := findJoint(joints, name); ok {
		return joint, nil
	}
	return models.Joint{}, fmt.Errorf("%w: %s", ErrJointNotFound, name)
}

func findJoint(joints []models.Joint, name string) (models.Joint, bool) {
	for _, joint := range joints {
		if joint.Name == name {
			return joint, true
		}
	}
	return models.Joint{}, false
}
