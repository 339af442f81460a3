/*
   Opcode byte constants referenced by name from the instruction handlers,
   standing in for the teacher's deleted emu/opcodemap package (a constant
   table, not a component this core's scope needs as a separate package).

   Copyright (c) 2026, S390x-emu contributors
*/

package cpu

const (
	OpBALR  uint8 = 0x05
	OpBCTR  uint8 = 0x06
	OpBCR   uint8 = 0x07
	OpBASR  uint8 = 0x0d
	OpEX    uint8 = 0x44
	OpMH    uint8 = 0x4c
	OpSTNSM uint8 = 0xac
	OpSTOSM uint8 = 0xad
	OpMVN   uint8 = 0xd1
	OpMVC   uint8 = 0xd2
	OpMVZ   uint8 = 0xd3
	OpNC    uint8 = 0xd4
	OpCLC   uint8 = 0xd5
	OpOC    uint8 = 0xd6
	OpXC    uint8 = 0xd7
	OpTR    uint8 = 0xdc
	OpTRT   uint8 = 0xdd
	OpED    uint8 = 0xde
	OpEDMK  uint8 = 0xdf
	OpMVO   uint8 = 0xf1
	OpPACK  uint8 = 0xf2
	OpUNPK  uint8 = 0xf3
	OpZAP   uint8 = 0xf8
	OpCP    uint8 = 0xf9
	OpAP    uint8 = 0xfa
	OpSP    uint8 = 0xfb
	OpMP    uint8 = 0xfc
	OpDP    uint8 = 0xfd
)
