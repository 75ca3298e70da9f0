// Package link drives a connection to a single target device: discovery,
// classification (bootloader vs OS), connect/reconnect/ping/disconnect, and
// the task/sys-info inspectors layered on top of a connected Session.
//
// A Session is single-threaded: its public API is synchronous and blocks on
// transport I/O, and concurrent calls into the same Session are undefined
// (see the package-level concurrency note on GetInfoList for the one
// deliberate exception). A process may hold many independent Sessions.
//
// # Basic usage
//
//	sess := link.NewSession(myDialer, link.WithLogger(myLogger))
//	if err := sess.Connect(ctx, driverpath.Parse("usb/04B4/0004/0/SN123"), false); err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Disconnect()
//
//	fmt.Println(sess.SysInfo().Name, sess.Kind())
//
// # Error handling
//
// Every method checks the session's sticky error on entry and becomes a
// no-op if it is set; call Session.Err to inspect it and Session.ResetError
// to clear it before continuing. A Session holds at most one current error
// at a time.
package link
