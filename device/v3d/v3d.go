// Package v3d drives a real V3D GPU through the DRM render node.
package v3d

import (
	"errors"
	"unsafe"
)

// DefaultPath is the DRM node of the V3D GPU on a Raspberry Pi 4.
const DefaultPath = "/dev/dri/card0"

// ErrUnsupported is returned on platforms without the V3D DRM interface.
var ErrUnsupported = errors.New("v3d: unsupported platform")

// DRM ioctl numbers.
const (
	drmIoctlBase    = 'd'
	drmCommandBase  = 0x40
	drmGemCloseNr   = 0x09
	v3dWaitBoNr     = 0x01
	v3dCreateBoNr   = 0x02
	v3dMmapBoNr     = 0x03
	v3dSubmitCSDNr  = 0x07
	iocWrite        = 1
	iocRead         = 2
	iocNrShift      = 0
	iocTypeShift    = 8
	iocSizeShift    = 16
	iocDirShift     = 30
	defaultTimeout  = 10_000_000_000 // ns
	maxRetryOnIntr  = 16
	defaultPageSize = 4096
)

type gemClose struct {
	Handle uint32
	Pad    uint32
}

type createBO struct {
	Size   uint32
	Flags  uint32
	Handle uint32
	Offset uint32
}

type mmapBO struct {
	Handle uint32
	Flags  uint32
	Offset uint64
}

type waitBO struct {
	Handle    uint32
	Pad       uint32
	TimeoutNs uint64
}

type submitCSD struct {
	Cfg           [7]uint32
	Coef          [4]uint32
	_             uint32
	BOHandles     uint64
	BOHandleCount uint32
	InSync        uint32
	OutSync       uint32
	_             uint32
}

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | drmIoctlBase<<iocTypeShift | nr<<iocNrShift
}

var (
	ioctlGemClose  = ioc(iocWrite, drmGemCloseNr, unsafe.Sizeof(gemClose{}))
	ioctlWaitBO    = ioc(iocRead|iocWrite, drmCommandBase+v3dWaitBoNr, unsafe.Sizeof(waitBO{}))
	ioctlCreateBO  = ioc(iocRead|iocWrite, drmCommandBase+v3dCreateBoNr, unsafe.Sizeof(createBO{}))
	ioctlMmapBO    = ioc(iocRead|iocWrite, drmCommandBase+v3dMmapBoNr, unsafe.Sizeof(mmapBO{}))
	ioctlSubmitCSD = ioc(iocWrite, drmCommandBase+v3dSubmitCSDNr, unsafe.Sizeof(submitCSD{}))
)
