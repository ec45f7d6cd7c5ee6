package knx

import (
	"bytes"
	"testing"
)

func TestCEMI_RoundTrip_GroupValueWrite(t *testing.T) {
	src, err := ParseIndividualAddress("1.1.1")
	if err != nil {
		t.Fatalf("ParseIndividualAddress() error = %v", err)
	}
	dst, err := ParseGroupAddress("1/2/3")
	if err != nil {
		t.Fatalf("ParseGroupAddress() error = %v", err)
	}

	original := Frame{
		Code:        LDataReq,
		Priority:    PriorityNormal,
		AddressType: AddressGroup,
		Src:         src,
		Dst:         dst.ToUint16(),
		APCI:        APCIGroupValueWrite,
		SmallValue:  1,
	}

	encoded, err := EncodeCEMI(original)
	if err != nil {
		t.Fatalf("EncodeCEMI() error = %v", err)
	}

	decoded, err := DecodeCEMI(encoded)
	if err != nil {
		t.Fatalf("DecodeCEMI() error = %v", err)
	}

	if decoded.Code != original.Code {
		t.Errorf("Code = %v, want %v", decoded.Code, original.Code)
	}
	if decoded.Priority != original.Priority {
		t.Errorf("Priority = %v, want %v", decoded.Priority, original.Priority)
	}
	if decoded.AddressType != original.AddressType {
		t.Errorf("AddressType = %v, want %v", decoded.AddressType, original.AddressType)
	}
	if decoded.Src != original.Src {
		t.Errorf("Src = %v, want %v", decoded.Src, original.Src)
	}
	if decoded.Dst != original.Dst {
		t.Errorf("Dst = %04X, want %04X", decoded.Dst, original.Dst)
	}
	if decoded.APCI != original.APCI {
		t.Errorf("APCI = %v, want %v", decoded.APCI, original.APCI)
	}
	if decoded.SmallValue != original.SmallValue {
		t.Errorf("SmallValue = %v, want %v", decoded.SmallValue, original.SmallValue)
	}
}

func TestCEMI_RoundTrip_WithPayload(t *testing.T) {
	src, _ := ParseIndividualAddress("1.1.1")
	dst, _ := ParseGroupAddress("1/2/3")

	payload, err := EncodeDPT9(21.5)
	if err != nil {
		t.Fatalf("EncodeDPT9() error = %v", err)
	}

	original := Frame{
		Code:        LDataReq,
		Priority:    PriorityLow,
		AddressType: AddressGroup,
		Src:         src,
		Dst:         dst.ToUint16(),
		APCI:        APCIGroupValueWrite,
		Data:        payload,
	}

	encoded, err := EncodeCEMI(original)
	if err != nil {
		t.Fatalf("EncodeCEMI() error = %v", err)
	}

	decoded, err := DecodeCEMI(encoded)
	if err != nil {
		t.Fatalf("DecodeCEMI() error = %v", err)
	}

	if !bytes.Equal(decoded.Data, payload) {
		t.Errorf("Data = %X, want %X", decoded.Data, payload)
	}
}

func TestCEMI_AllPriorities(t *testing.T) {
	src, _ := ParseIndividualAddress("1.1.1")
	dst, _ := ParseGroupAddress("1/2/3")

	for _, p := range []Priority{PrioritySystem, PriorityUrgent, PriorityNormal, PriorityLow} {
		f := Frame{Code: LDataReq, Priority: p, AddressType: AddressGroup, Src: src, Dst: dst.ToUint16(), APCI: APCIGroupValueRead}
		encoded, err := EncodeCEMI(f)
		if err != nil {
			t.Fatalf("EncodeCEMI() error = %v", err)
		}
		decoded, err := DecodeCEMI(encoded)
		if err != nil {
			t.Fatalf("DecodeCEMI() error = %v", err)
		}
		if decoded.Priority != p {
			t.Errorf("Priority round trip = %v, want %v", decoded.Priority, p)
		}
	}
}

func TestDecodeCEMI_TooShort(t *testing.T) {
	if _, err := DecodeCEMI([]byte{0x11, 0x00}); err == nil {
		t.Error("DecodeCEMI() expected error for short frame")
	}
}

func TestIndividualAddress_ParseAndFormat(t *testing.T) {
	tests := []struct {
		input string
		want  IndividualAddress
	}{
		{"1.1.1", IndividualAddress{Area: 1, Line: 1, Device: 1}},
		{"15.15.255", IndividualAddress{Area: 15, Line: 15, Device: 255}},
		{"0.0.0", IndividualAddress{}},
	}

	for _, tt := range tests {
		got, err := ParseIndividualAddress(tt.input)
		if err != nil {
			t.Fatalf("ParseIndividualAddress(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseIndividualAddress(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
		if got.String() != tt.input {
			t.Errorf("String() = %q, want %q", got.String(), tt.input)
		}
	}
}

func TestIndividualAddress_ToUint16RoundTrip(t *testing.T) {
	ia := IndividualAddress{Area: 3, Line: 5, Device: 200}
	got := IndividualAddressFromUint16(ia.ToUint16())
	if got != ia {
		t.Errorf("round trip = %+v, want %+v", got, ia)
	}
}

func TestIndividualAddress_InvalidFormat(t *testing.T) {
	if _, err := ParseIndividualAddress("not-an-address"); err == nil {
		t.Error("ParseIndividualAddress() expected error for invalid format")
	}
	if _, err := ParseIndividualAddress("16.0.0"); err == nil {
		t.Error("ParseIndividualAddress() expected error for area out of range")
	}
}

func TestRoutingFrame_RoundTrip(t *testing.T) {
	cemi := []byte{0x11, 0x00, 0x90, 0x60, 0x11, 0x01, 0x08, 0x01, 0x01, 0x00, 0x80}

	encoded, err := EncodeRoutingFrame(cemi)
	if err != nil {
		t.Fatalf("EncodeRoutingFrame() error = %v", err)
	}
	if encoded[0] != 0x06 || encoded[1] != 0x10 {
		t.Errorf("bad magic bytes: %02X%02X", encoded[0], encoded[1])
	}
	if encoded[2] != 0x05 || encoded[3] != 0x30 {
		t.Errorf("bad service type: %02X%02X", encoded[2], encoded[3])
	}

	decoded, err := DecodeRoutingFrame(encoded)
	if err != nil {
		t.Fatalf("DecodeRoutingFrame() error = %v", err)
	}
	if !bytes.Equal(decoded, cemi) {
		t.Errorf("decoded cEMI = %X, want %X", decoded, cemi)
	}
}

func TestDecodeRoutingFrame_BadMagic(t *testing.T) {
	bad := []byte{0x00, 0x00, 0x05, 0x30, 0x00, 0x06}
	if _, err := DecodeRoutingFrame(bad); err == nil {
		t.Error("DecodeRoutingFrame() expected error for bad magic")
	}
}

func TestDecodeRoutingFrame_WrongLength(t *testing.T) {
	bad := []byte{0x06, 0x10, 0x05, 0x30, 0x00, 0xFF}
	if _, err := DecodeRoutingFrame(bad); err == nil {
		t.Error("DecodeRoutingFrame() expected error for mismatched length")
	}
}
