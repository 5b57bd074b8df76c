// Package device implements the bootloader that runs on a CAN node.
//
// A Machine owns one page buffer and services the protocol commands from a
// cooperative main loop. Hardware is reached only through the HAL
// interfaces, so the same code drives real peripherals or the simulator in
// internal/simnode.
//
// # Interrupt Handoff
//
// The receive interrupt calls OnReceive, which copies the frame into a
// single-producer single-consumer ring. The timer interrupt calls Tick.
// Everything else happens in Step:
//
//	m := device.New(hal, device.WithNode(5))
//	if err := m.Boot(); err != nil {
//	    return err // application started
//	}
//	for {
//	    if err := m.Step(); err != nil {
//	        return err
//	    }
//	}
//
// # Modes
//
// The machine starts in ModeIdle and sends an alert every AlertInterval
// ticks until the host first talks to it. A command moves it to
// ModeCommunicating until the command, or the multi-frame transfer it
// starts, completes. When IdleTimeout ticks pass in ModeIdle without host
// traffic the application is started.
//
// A transmission that is not confirmed within TxPollLimit polls moves the
// machine to ModeError. There is no way out of ModeError other than a
// hardware reset; the LED shows the error pattern.
//
// # Page Order
//
// Write-Memory for page 0 restarts the page sequence. Any other page is
// rejected unless page 0 was accepted since boot and the address is not
// below the previous page. Repeating the previous page is allowed so the
// host can retry.
package device
