// Package ipc implements the IPC Router client (C1): the bring-up path
// that opens datagram sockets against the on-chip message router, looks
// up (service, instance) -> (node, port) pairs, installs the access
// rules the SMD control channel needs, and primes the dynamic port
// mapper so the channel becomes routable at all.
//
// This is the one layer of the supervisor that speaks the router's raw
// ioctl/sockaddr ABI directly rather than a byte-stream QMI frame, so it
// is also the one place pointer-style encoding survives: the struct
// layouts below are a best-effort reconstruction from the reverse
// engineered bring-up sequence (the kernel headers defining them were
// not available), kept only as wide as the fields the sequence actually
// touches.
package ipc

import (
	"context"
	"encoding/binary"
	"os"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// AFMSMIPC is the address family the on-chip message router registers
// itself under. It has no stable upstream name in golang.org/x/sys/unix
// since it is a vendor (MSM/Hexagon) socket family, not a mainline one.
const AFMSMIPC = 27

// Well-known router addressing used to reach the DSP's dynamic port
// mapper, per the bring-up sequence.
const (
	HexagonNode   = 0
	HexagonDPMPort = 0xfffffffe

	dpmService  = 0x2f
	dpmInstance = 0x1
)

// ReservedNodeID is the node id a lookup result must never resolve to
// (spec.md §4.1, §8 property 6). Mirrors qmi.ReservedNodeID; kept local
// so this package has no dependency on the QMI frame layer.
const ReservedNodeID = 41

// SecurityCategories is the number of service categories
// install_security_rules iterates, 0..510 inclusive (spec.md §4.1).
const SecurityCategories = 511

// SecurityUID is the uid/gid every installed rule grants access to.
const SecurityUID = 54

// DPM control device and SMD control port name the port mapper request
// targets.
const (
	DPMControlPath  = "/dev/dpmctl"
	SMDControlPort  = "SMDCNTL8"
	epTypeBAMDMUX   = 0x01
)

// portMapperRetryInterval is the backoff between sendto attempts while
// the mapper rejects the open request.
const portMapperRetryInterval = 1 * time.Second

// ErrNoSocket is returned when a socket could not be opened at all; C1
// bring-up treats this as fatal.
var ErrNoSocket = errors.New("ipc: unable to open router socket")

// ErrNotFound is returned by Lookup when no server answers, or answers
// only with the reserved node id.
var ErrNotFound = errors.New("ipc: service not found")

// ServerInfo is a single (node, port) resolution for a (service,
// instance) pair.
type ServerInfo struct {
	NodeID   uint32
	PortID   uint32
	Service  uint32
	Instance uint32
}

// Socket wraps an open AF_MSM_IPC datagram socket bound to one
// (service, instance) well-known address.
type Socket struct {
	fd            int
	Service       uint32
	Instance      uint32
	TransactionID uint32
}

// sockaddrMSMIPC mirrors struct sockaddr_msm_ipc: a router address
// tagged as either a raw (node,port) pair or a (service,instance) name,
// selected by AddrType.
type sockaddrMSMIPC struct {
	Family   uint16
	AddrType uint8
	_        uint8 // padding to a 4-byte aligned union, matched empirically
	NodeID   uint32
	PortID   uint32
	Service  uint32
	Instance uint32
}

// Address kinds for sockaddrMSMIPC.AddrType.
const (
	AddrTypeID   = 1 // addr.port_addr: raw (node_id, port_id)
	AddrTypeName = 2 // addr.port_name: (service, instance)
)

func rawSocket() (int, error) {
	fd, err := unix.Socket(AFMSMIPC, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket(AF_MSM_IPC)")
	}
	return fd, nil
}

// OpenSocket opens a router datagram socket that records (service,
// instance), mirroring open_ipc_socket in the reverse-engineered bring-up
// path. node, port and addrKind are accepted but not used; each send
// builds its destination address from service and instance.
func OpenSocket(node, port, service, instance uint32, addrKind uint8) (*Socket, error) {
	fd, err := rawSocket()
	if err != nil {
		return nil, errors.Wrap(ErrNoSocket, err.Error())
	}
	return &Socket{fd: fd, Service: service, Instance: instance, TransactionID: 1}, nil
}

// Close releases the underlying descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

func (s *Socket) addr(node, port uint32, addrKind uint8) sockaddrMSMIPC {
	return sockaddrMSMIPC{
		Family:   AFMSMIPC,
		AddrType: addrKind,
		NodeID:   node,
		PortID:   port,
		Service:  s.Service,
		Instance: s.Instance,
	}
}

// sendTo issues a raw sendto(2) against the router address, bypassing
// unix.Sendto because sockaddr_msm_ipc has no Go Sockaddr binding in
// golang.org/x/sys/unix.
func (s *Socket) sendTo(buf []byte, sa sockaddrMSMIPC) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_SENDTO,
		uintptr(s.fd),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		uintptr(unix.MSG_DONTWAIT),
		uintptr(unsafe.Pointer(&sa)),
		unsafe.Sizeof(sa),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// serverLookupArgs mirrors struct server_lookup_args well enough to
// drive IPC_ROUTER_IOCTL_LOOKUP_SERVER: a (service, instance) query plus
// a fixed result array the kernel fills in place.
type serverLookupArgs struct {
	Service         uint32
	Instance        uint32
	LookupMask      uint32
	NumEntriesArray uint32
	NumEntriesFound uint32
	Info            [maxLookupEntries]ServerInfo
}

const maxLookupEntries = 32

// IPCRouterIoctlLookupServer is the router's name-service query ioctl
// command number, encoded with the standard Linux _IOC layout.
var IPCRouterIoctlLookupServer = ioc(iocRead|iocWrite, 0xc3, 2, unsafe.Sizeof(serverLookupArgs{}))

// Linux ioctl _IOC directions and shift layout (include/uapi/asm-generic/ioctl.h).
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir uintptr, typ byte, nr byte, size uintptr) uintptr {
	return dir<<iocDirShift | uintptr(typ)<<iocTypeShift | uintptr(nr)<<iocNRShift | size<<iocSizeShift
}

func ioctl(fd int, cmd uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), cmd, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Lookup resolves (service, instance) to its current (node, port),
// filtering out the reserved node id per spec.md §4.1 and §8 property 6.
func Lookup(service, instance uint32) (ServerInfo, error) {
	fd, err := rawSocket()
	if err != nil {
		return ServerInfo{}, errors.Wrap(ErrNoSocket, err.Error())
	}
	defer unix.Close(fd)

	args := serverLookupArgs{
		Service:         service,
		Instance:        instance,
		NumEntriesArray: 1,
	}
	if instance != 0 {
		args.LookupMask = 0xFFFFFFFF
	}

	if err := ioctl(fd, IPCRouterIoctlLookupServer, unsafe.Pointer(&args)); err != nil {
		return ServerInfo{}, ErrNotFound
	}
	if args.NumEntriesFound == 0 || args.Info[0].NodeID == ReservedNodeID {
		return ServerInfo{}, ErrNotFound
	}
	return args.Info[0], nil
}

// IsServerActive reports whether a non-reserved server answers the
// (service, instance) lookup.
func IsServerActive(service, instance uint32) bool {
	_, err := Lookup(service, instance)
	return err == nil
}

// irscRule mirrors struct irsc_rule: one access-control rule granting a
// (uid/gid, group) triple access to a service/instance range.
type irscRule struct {
	RlNo     uint32
	Service  uint32
	Instance uint32
	GroupID  uint32
}

// InstanceAll is the IRSC_INSTANCE_ALL wildcard.
const InstanceAll = 0xFFFFFFFF

// IoctlRules is the rule-upload ioctl command number.
var IoctlRules = ioc(iocWrite, 0xc3, 5, unsafe.Sizeof(irscRule{}))

// IoctlBindToIPC binds a freshly opened router socket to the IPC1
// transport before it can be used, per the bring-up sequence's
// "IOCTL to the IPC1 socket" step.
var IoctlBindToIPC = ioc(iocNone, 0xc3, 1, 0)

// InstallSecurityRules iterates service categories 0..SecurityCategories-1
// and installs an access rule granting SecurityUID access to every
// instance of that category, failing fatally on the first rejected rule
// (spec.md §4.1, §7: bring-up errors are fatal).
func InstallSecurityRules() error {
	fd, err := rawSocket()
	if err != nil {
		return errors.Wrap(ErrNoSocket, err.Error())
	}
	defer unix.Close(fd)

	for category := 0; category < SecurityCategories; category++ {
		rule := irscRule{
			RlNo:     SecurityUID,
			Service:  uint32(category),
			Instance: InstanceAll,
			GroupID:  SecurityUID,
		}
		if err := ioctl(fd, IoctlRules, unsafe.Pointer(&rule)); err != nil {
			return errors.Wrapf(err, "install security rule for category %d", category)
		}
	}
	return nil
}

// buildPortMapperRequest assembles the hand-crafted QMI payload that
// requests the dynamic port mapper open the SMD control port, mirroring
// the magic byte layout init_port_mapper constructs directly over its C
// struct. Kept as a standalone function (rather than inline in
// InitPortMapper) so the wire bytes it produces are independently
// testable without a real DPM device.
func buildPortMapperRequest(txn uint16) []byte {
	buf := make([]byte, 0, 64)

	put16 := func(v uint16) {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		buf = append(buf, b[:]...)
	}
	put32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		buf = append(buf, b[:]...)
	}

	buf = append(buf, 0x00) // ctlid
	put16(txn)
	put16(32) // msgid: open port mapper request
	put16(0)  // length placeholder, patched below
	put16(0x10) // is_valid_ctl_list
	put32(0x0b010015) // ctl_list_length, per the reverse-engineered constant

	name := make([]byte, 16)
	copy(name, SMDControlPort)
	buf = append(buf, name...)
	put16(epTypeBAMDMUX)  // hw_port_map[0].epinfo.ep_type
	put32(0x08000000)     // hw_port_map[0].epinfo.peripheral_iface_id

	buf = append(buf, 0x00) // is_valid_hw_list
	put32(0x11110000)       // hw_list_length
	put16(0)                // hw_epinfo.ph_ep_info.ep_type (DATA_EP_TYPE_RESERVED)
	put32(0x00000501)       // hw_epinfo.ph_ep_info.peripheral_iface_id
	put32(0x00000800)       // ipa_ep_pair.cons_pipe_num
	put32(0)                // ipa_ep_pair.prod_pipe_num

	buf = append(buf, 0x00) // is_valid_sw_list
	put32(0)                // sw_list_length

	length := uint16(len(buf) - 7) // minus ctlid+txn+msgid+length fields
	binary.LittleEndian.PutUint16(buf[5:7], length)
	return buf
}

// InitPortMapper opens the DPM control device, primes the line state
// with the unknown read-ioctl the bring-up sequence issues, then retries
// the hand-crafted SMD-open request at 1Hz until sendto succeeds
// (spec.md §4.1: "the mapper MAY reject the first attempts"). Both
// descriptors are closed once the request lands.
func InitPortMapper(ctx context.Context) error {
	sock, err := OpenSocket(HexagonNode, HexagonDPMPort, dpmService, dpmInstance, AddrTypeID)
	if err != nil {
		return errors.Wrap(err, "open DPM socket")
	}
	defer sock.Close()

	// The source logs and continues on failure here rather than aborting:
	// the bind is advisory, not a precondition the rest of bring-up
	// depends on.
	var bindArg int32
	_ = ioctl(sock.fd, IoctlBindToIPC, unsafe.Pointer(&bindArg))

	dpm, err := os.OpenFile(DPMControlPath, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "open %s", DPMControlPath)
	}
	defer dpm.Close()

	// Unknown read-ioctl that primes line state ahead of the request
	// (the source names it only as "just before line state to rmnet").
	var lineState int32
	primeCmd := ioc(iocRead, 0x72, 0x2, 4)
	_ = ioctl(int(dpm.Fd()), primeCmd, unsafe.Pointer(&lineState))

	req := buildPortMapperRequest(1)
	addr := sock.addr(HexagonNode, HexagonDPMPort, AddrTypeID)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sock.sendTo(req, addr); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(portMapperRetryInterval):
		}
	}
}
