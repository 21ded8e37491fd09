// Command rtpsd is a small example daemon wiring a participant.Participant
// to a real UDP transport on one RTPS domain: analogous to the
// teacher's cmd/canopen/main.go wiring a canopen.Node to a socketcan
// bus from flag-parsed interface/node-id arguments.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/config"
	"github.com/lumendds/rtps/participant"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/reader"
	"github.com/lumendds/rtps/pkg/writer"
	"github.com/lumendds/rtps/transport"
)

var defaultDomainId = 0
var defaultParticipantId = 0

func main() {
	log.SetLevel(log.InfoLevel)

	domainId := flag.Int("d", defaultDomainId, "RTPS domain id")
	participantId := flag.Int("p", defaultParticipantId, "participant id within the domain")
	bindAddr := flag.String("b", "0.0.0.0", "local address to bind the unicast UDP socket to")
	qosProfilePath := flag.String("qos", "", "path to a *.qosprofile INI file (optional)")
	topicName := flag.String("topic", "example/topic", "topic name for the demo writer/reader")
	typeName := flag.String("type", "ExampleType", "type name for the demo writer/reader")
	flag.Parse()

	profiles := map[string]qos.EndpointQos{}
	if *qosProfilePath != "" {
		loaded, err := config.LoadQosProfiles(*qosProfilePath)
		if err != nil {
			fmt.Printf("error loading qos profiles: %v\n", err)
			os.Exit(1)
		}
		profiles = loaded
	}
	endpointQos := qos.Default()
	if p, ok := profiles["default"]; ok {
		endpointQos = p
	}

	unicastPort := rtps.MetatrafficUnicastPort(uint32(*domainId), uint32(*participantId))
	local := rtps.NewLocatorUDPv4(net.ParseIP(*bindAddr), unicastPort)

	udp, err := transport.Bind(local)
	if err != nil {
		fmt.Printf("could not bind udp socket on %v : %v\n", local, err)
		os.Exit(1)
	}
	defer udp.Close()

	mcast := rtps.NewLocatorUDPv4(rtps.SpdpMulticastAddress, rtps.SpdpMulticastPort(uint32(*domainId)))
	if err := udp.JoinMulticast(mcast); err != nil {
		log.WithError(err).Warn("failed to join SPDP multicast group, discovery will be unicast-only")
	}

	var guidPrefix rtps.GuidPrefix
	copy(guidPrefix[:4], []byte{0x01, 0x0f, byte(*domainId), byte(*participantId)})
	if host, err := os.Hostname(); err == nil {
		copy(guidPrefix[4:], []byte(host))
	}

	p := participant.New(participant.Config{
		DomainId:           uint32(*domainId),
		ParticipantId:      uint32(*participantId),
		GuidPrefix:         guidPrefix,
		Transport:          udp,
		DefaultUnicast:     local,
		MetatrafficUnicast: local,
		HeartbeatPeriod:    1 * time.Second,
		NackResponseDelay:  200 * time.Millisecond,
		NackSuppression:    0,
	})
	p.Start()
	defer p.Stop()

	w, err := p.CreateDataWriter(*topicName, *typeName, endpointQos)
	if err != nil {
		log.WithError(err).Fatal("failed to create demo data writer")
	}
	r, err := p.CreateDataReader(*topicName, *typeName, endpointQos)
	if err != nil {
		log.WithError(err).Fatal("failed to create demo data reader")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	go publishLoop(w, p.Guid(), quit)
	go pollLoop(r, quit)

	log.WithField("domain", *domainId).WithField("topic", *topicName).Info("rtpsd running, press ctrl-c to stop")
	<-sig
	close(quit)
}

// publishLoop writes an incrementing counter sample every second,
// standing in for the application code the teacher's main loop leaves
// as a "<-- Add application code HERE" comment.
func publishLoop(w *writer.StatefulWriter, ownGuid rtps.Guid, quit <-chan struct{}) {
	var instance cache.InstanceHandle
	copy(instance[:], ownGuid.Prefix[:])

	var counter uint32
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			counter++
			payload := make([]byte, 4)
			binary.LittleEndian.PutUint32(payload, counter)
			if err := w.Write(instance, payload, parameter.ParameterList{}); err != nil {
				log.WithError(err).Warn("demo write failed")
			}
		case <-quit:
			return
		}
	}
}

// pollLoop logs every sample that accumulates in the reader's
// HistoryCache; a full DDS facade would deliver these through a
// listener or WaitSet instead of polling.
func pollLoop(r *reader.StatefulReader, quit <-chan struct{}) {
	seen := make(map[rtps.Guid]rtps.SequenceNumber)
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			history := r.History()
			for _, writerGuid := range history.WriterGuids() {
				for _, change := range history.Changes(writerGuid) {
					last := seen[change.WriterGuid]
					if change.SequenceNumber <= last {
						continue
					}
					seen[change.WriterGuid] = change.SequenceNumber
					log.WithField("writer", change.WriterGuid.String()).
						WithField("seq", change.SequenceNumber).
						Info("received sample")
				}
			}
		case <-quit:
			return
		}
	}
}
