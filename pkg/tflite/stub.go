//go:build !tflite

package tflite

import (
	"context"

	"github.com/menta2k/leafscan/pkg/model"
)

// Load always fails without the tflite build tag
func (l *Loader) Load(_ context.Context, location string) (model.Model, error) {
	l.log.WithField("model", location).Error("TFLite support not compiled in")
	return nil, ErrUnavailable
}
