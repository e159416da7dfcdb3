package transforms

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"
)

// ErrInvalidChannelRange is returned when a channel range does not satisfy
// 0 <= start < stop <= number of channels.
var ErrInvalidChannelRange = errors.New("invalid channel range")

// AverageChannels averages a tensor over a slice of its channel axis (axis 1
// in a [batch, channel, ...] layout), keeping the axis as a size-1 dimension.
type AverageChannels struct {
	startChannel *int
	stopChannel  *int
}

// NewAverageChannels configures the inclusive-exclusive channel range
// [startChannel, stopChannel). A nil bound is open on that side: start
// defaults to 0 and stop to the tensor's channel count. The range is
// validated per call since the channel count depends on the input shape.
func NewAverageChannels(startChannel, stopChannel *int) *AverageChannels {
	return &AverageChannels{startChannel: startChannel, stopChannel: stopChannel}
}

func (t *AverageChannels) Name() string {
	return "average_channels"
}

func (t *AverageChannels) Apply(value *Value) (*Value, error) {
	if value.IsHost() {
		out, err := t.average(value.Host)
		if err != nil {
			return nil, err
		}
		return FromHost(out), nil
	}

	host, err := exportORT(value.ORT)
	if err != nil {
		return nil, err
	}
	averaged, err := t.average(host)
	if err != nil {
		return nil, err
	}
	out, err := importORT(averaged)
	if err != nil {
		return nil, err
	}
	return FromORT(out), nil
}

func (t *AverageChannels) average(d *tensor.Dense) (*tensor.Dense, error) {
	shape := d.Shape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("%w in average_channels: input of shape %v has no channel axis", ErrInvalidChannelRange, shape)
	}
	channels := shape[1]
	start, stop := 0, channels
	if t.startChannel != nil {
		start = *t.startChannel
	}
	if t.stopChannel != nil {
		stop = *t.stopChannel
	}
	if start < 0 || start >= stop || stop > channels {
		return nil, fmt.Errorf("%w in average_channels: [%d, %d) over %d channels", ErrInvalidChannelRange, start, stop, channels)
	}

	view, err := d.Slice(nil, tensor.S(start, stop))
	if err != nil {
		return nil, err
	}
	sliced := view.(*tensor.Dense).Materialize().(*tensor.Dense)

	// A mean over integer data is not representable in the input type.
	if dt := sliced.Dtype(); dt != tensor.Float32 && dt != tensor.Float64 {
		sliced, err = Cast(sliced, tensor.Float32)
		if err != nil {
			return nil, err
		}
	}

	summed, err := sliced.Sum(1)
	if err != nil {
		return nil, err
	}
	var mean *tensor.Dense
	if summed.Dtype() == tensor.Float64 {
		mean, err = summed.DivScalar(float64(stop-start), true)
	} else {
		mean, err = summed.DivScalar(float32(stop-start), true)
	}
	if err != nil {
		return nil, err
	}

	// Retain the reduced axis as a size-1 dimension.
	outShape := append([]int{shape[0], 1}, shape[2:]...)
	if err := mean.Reshape(outShape...); err != nil {
		return nil, err
	}
	return mean, nil
}
