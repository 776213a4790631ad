//go:build linux

package drm

import (
	"fmt"
	"runtime"
	"unsafe"
)

const (
	ioctlModeGetCrtcNr      = 0xa1
	ioctlModeSetCrtcNr      = 0xa2
	ioctlModeGetEncoderNr   = 0xa6
	ioctlModeGetConnectorNr = 0xa7
)

// drmModeInfo mirrors struct drm_mode_modeinfo.
type drmModeInfo struct {
	Clock      uint32
	Hdisplay   uint16
	HsyncStart uint16
	HsyncEnd   uint16
	Htotal     uint16
	Hskew      uint16
	Vdisplay   uint16
	VsyncStart uint16
	VsyncEnd   uint16
	Vtotal     uint16
	Vscan      uint16
	Vrefresh   uint32
	Flags      uint32
	Type       uint32
	Name       [32]byte
}

// drmModeCrtc mirrors struct drm_mode_crtc.
type drmModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32
	CrtcID           uint32
	FbID             uint32
	X                uint32
	Y                uint32
	GammaSize        uint32
	ModeValid        uint32
	Mode             drmModeInfo
}

// drmModeGetEncoder mirrors struct drm_mode_get_encoder.
type drmModeGetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

// drmModeGetConnector mirrors struct drm_mode_get_connector. With every
// count zero the kernel only fills in the scalar fields.
type drmModeGetConnector struct {
	EncodersPtr     uint64
	ModesPtr        uint64
	PropsPtr        uint64
	PropValuesPtr   uint64
	CountModes      uint32
	CountProps      uint32
	CountEncoders   uint32
	EncoderID       uint32
	ConnectorID     uint32
	ConnectorType   uint32
	ConnectorTypeID uint32
	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32
	Pad             uint32
}

// SavedCRTC is the state of the CRTC driving a connector, captured so it
// can be put back when the connector is let go.
type SavedCRTC struct {
	ConnectorID uint32
	CrtcID      uint32
	FbID        uint32
	X, Y        uint32
	ModeValid   bool
	mode        drmModeInfo
}

// CRTCStore captures and restores CRTC state on a DRM descriptor.
type CRTCStore interface {
	Save(fd int, connectorID uint32) (*SavedCRTC, error)
	Restore(fd int, saved *SavedCRTC) error
}

// KernelCRTCs implements CRTCStore with mode-setting ioctls.
type KernelCRTCs struct{}

// Save reads the CRTC currently bound to connectorID. A connector with no
// encoder or CRTC yields nil and no error.
func (KernelCRTCs) Save(fd int, connectorID uint32) (*SavedCRTC, error) {
	conn := drmModeGetConnector{ConnectorID: connectorID}
	if err := ioctl(fd, iowr(ioctlModeGetConnectorNr, unsafe.Sizeof(conn)), unsafe.Pointer(&conn)); err != nil {
		return nil, fmt.Errorf("get connector %d: %w", connectorID, err)
	}
	if conn.EncoderID == 0 {
		return nil, nil
	}

	enc := drmModeGetEncoder{EncoderID: conn.EncoderID}
	if err := ioctl(fd, iowr(ioctlModeGetEncoderNr, unsafe.Sizeof(enc)), unsafe.Pointer(&enc)); err != nil {
		return nil, fmt.Errorf("get encoder %d: %w", conn.EncoderID, err)
	}
	if enc.CrtcID == 0 {
		return nil, nil
	}

	crtc := drmModeCrtc{CrtcID: enc.CrtcID}
	if err := ioctl(fd, iowr(ioctlModeGetCrtcNr, unsafe.Sizeof(crtc)), unsafe.Pointer(&crtc)); err != nil {
		return nil, fmt.Errorf("get crtc %d: %w", enc.CrtcID, err)
	}
	return &SavedCRTC{
		ConnectorID: connectorID,
		CrtcID:      crtc.CrtcID,
		FbID:        crtc.FbID,
		X:           crtc.X,
		Y:           crtc.Y,
		ModeValid:   crtc.ModeValid != 0,
		mode:        crtc.Mode,
	}, nil
}

// Restore programs saved back into its CRTC. A CRTC that was off is
// switched off again.
func (KernelCRTCs) Restore(fd int, saved *SavedCRTC) error {
	connectors := []uint32{saved.ConnectorID}
	crtc := drmModeCrtc{
		CrtcID: saved.CrtcID,
		FbID:   saved.FbID,
		X:      saved.X,
		Y:      saved.Y,
	}
	if saved.ModeValid && saved.FbID != 0 {
		crtc.SetConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
		crtc.CountConnectors = 1
		crtc.ModeValid = 1
		crtc.Mode = saved.mode
	} else {
		crtc.FbID = 0
	}

	err := ioctl(fd, iowr(ioctlModeSetCrtcNr, unsafe.Sizeof(crtc)), unsafe.Pointer(&crtc))
	runtime.KeepAlive(connectors)
	if err != nil {
		return fmt.Errorf("set crtc %d: %w", saved.CrtcID, err)
	}
	return nil
}

// ModeString describes the saved mode for logs.
func (s *SavedCRTC) ModeString() string {
	if !s.ModeValid {
		return "off"
	}
	return fmt.Sprintf("%dx%d", s.mode.Hdisplay, s.mode.Vdisplay)
}

func (m *Manager) crtcStore() CRTCStore {
	if m.CRTCs != nil {
		return m.CRTCs
	}
	return KernelCRTCs{}
}
