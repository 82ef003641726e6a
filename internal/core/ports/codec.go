package ports

// TextCodec converts between stored bytes and the strings handed to transformers.
type TextCodec interface {
	Decode(b []byte) (string, error)
	Encode(s string) ([]byte, error)
	Name() string
}
