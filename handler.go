package parbatch

//Processor the wrapped function contract. Process receives one chunk of the
//input collection together with the shared read-only params mapping and
//returns the produced items plus optional chunk metadata.
type Processor interface {
	Process(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error)
}

//ProcessFunc adapt a function returning items and metadata to Processor
type ProcessFunc func(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error)

//Process implement Processor
func (f ProcessFunc) Process(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error) {
	return f(items, params)
}

//SimpleProcessFunc adapt a function returning only items to Processor
type SimpleProcessFunc func(items []interface{}, params map[string]interface{}) ([]interface{}, error)

//Process implement Processor
func (f SimpleProcessFunc) Process(items []interface{}, params map[string]interface{}) ([]interface{}, interface{}, error) {
	out, err := f(items, params)
	return out, nil, err
}
