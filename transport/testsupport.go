package transport

// EncodeResponseFrame builds a well-formed response frame carrying result
// and payload. It is exported so mock devices in other packages' tests can
// speak this wire format without duplicating the framing/checksum logic.
func EncodeResponseFrame(result byte, payload []byte) []byte {
	return buildFrame(Opcode(result), payload)
}

// DecodeRequestFrame parses a request frame built by Client.Call, returning
// the opcode and payload a mock device should act on.
func DecodeRequestFrame(raw []byte) (Opcode, []byte, error) {
	parsed, err := parseFrame(raw)
	if err != nil {
		return 0, nil, err
	}
	return Opcode(parsed.resultByte), parsed.data, nil
}
