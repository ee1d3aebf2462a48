package fabric

// executeOptions carries the optional, rarely-varied parameters of
// Execute/ExecuteSession without widening the public positional
// signature every caller has to fill in.
type executeOptions struct {
	jsonMode      bool
	onModelTried  ModelTriedCallback
	chainOverride []string
	intent        string
	systemPrompt  string
}

// ExecuteOption configures a single execute/execute_session call.
type ExecuteOption func(*executeOptions)

// WithJSONMode requests a strict JSON response from every model tried.
func WithJSONMode(jsonMode bool) ExecuteOption {
	return func(o *executeOptions) { o.jsonMode = jsonMode }
}

// WithCallback registers a 4-arity or 6-arity on_model_tried callback.
func WithCallback(cb ModelTriedCallback) ExecuteOption {
	return func(o *executeOptions) { o.onModelTried = cb }
}

// WithChainOverride replaces the role's configured chain for this call only.
func WithChainOverride(chain []string) ExecuteOption {
	return func(o *executeOptions) { o.chainOverride = chain }
}

// WithIntent plumbs the upper-level tool layer's classifier verdict into
// the usage record, without widening execute's positional signature.
func WithIntent(intent string) ExecuteOption {
	return func(o *executeOptions) { o.intent = intent }
}

// WithSystemPrompt supplies the system_prompt argument of
// generate_with_history for execute_session calls.
func WithSystemPrompt(prompt string) ExecuteOption {
	return func(o *executeOptions) { o.systemPrompt = prompt }
}

func resolveOptions(opts []ExecuteOption) executeOptions {
	var o executeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
