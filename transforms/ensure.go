package transforms

// EnsureTensor converts host arrays to runtime tensors and pipes runtime
// tensors through untouched.
type EnsureTensor struct{}

func NewEnsureTensor() *EnsureTensor {
	return &EnsureTensor{}
}

func (t *EnsureTensor) Name() string {
	return "ensure_tensor"
}

// Apply converts a host array to a runtime tensor wrapping the same backing
// memory where possible. uint16 arrays are widened to int32 beforehand, see
// importORT. Runtime tensors are returned as is.
func (t *EnsureTensor) Apply(value *Value) (*Value, error) {
	if !value.IsHost() {
		return value, nil
	}
	out, err := importORT(value.Host)
	if err != nil {
		return nil, err
	}
	return FromORT(out), nil
}

// EnsureHost converts runtime tensors to host arrays and pipes host arrays
// through untouched.
type EnsureHost struct{}

func NewEnsureHost() *EnsureHost {
	return &EnsureHost{}
}

func (t *EnsureHost) Name() string {
	return "ensure_host"
}

// Apply copies a runtime tensor's contents out of runtime-owned memory into
// a fresh host array. A runtime tensor cannot be inspected in place: it may
// be device resident or still bound to a session. Host arrays are returned
// as is.
func (t *EnsureHost) Apply(value *Value) (*Value, error) {
	if value.IsHost() {
		return value, nil
	}
	host, err := exportORT(value.ORT)
	if err != nil {
		return nil, err
	}
	return FromHost(host), nil
}
