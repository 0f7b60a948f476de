package sim_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/wasmsim/internal/dynamo"
	"github.com/san-kum/wasmsim/internal/sim"
)

var _ = Describe("Driver", func() {
	var (
		ctx   context.Context
		model *sim.ScriptedModel
		drv   *sim.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		model = sim.NewScriptedModel()
		drv = sim.New(model)
	})

	It("starts loaded", func() {
		Expect(drv.Phase()).To(Equal(sim.PhaseLoaded))
		Expect(drv.Description()).To(BeNil())
	})

	It("walks every phase in order", func() {
		desc, err := drv.Describe(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(desc.Model.Name).To(Equal("scripted"))
		Expect(drv.Phase()).To(Equal(sim.PhaseDescribed))

		Expect(drv.Initialize(ctx, sim.SmallConfig(3))).To(Succeed())
		Expect(drv.Phase()).To(Equal(sim.PhaseInitialized))

		res, err := drv.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Rows).To(Equal(4))
		Expect(drv.Phase()).To(Equal(sim.PhaseTerminated))

		Expect(drv.Close(ctx)).To(Succeed())
		Expect(model.CloseCount()).To(Equal(1))
	})

	It("describes only once", func() {
		_, err := drv.Describe(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, err = drv.Describe(ctx)
		Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
		Expect(model.Calls()).To(Equal([]string{"describe"}))
	})

	It("rejects initialize before describe", func() {
		err := drv.Initialize(ctx, sim.SmallConfig(3))
		Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
		Expect(model.Calls()).To(BeEmpty())
	})

	It("rejects an invalid configuration without calling the model", func() {
		_, err := drv.Describe(ctx)
		Expect(err).NotTo(HaveOccurred())

		cfg := sim.SmallConfig(3)
		cfg.Steps = 0
		Expect(drv.Initialize(ctx, cfg)).NotTo(Succeed())
		Expect(drv.Phase()).To(Equal(sim.PhaseDescribed))
		Expect(model.Calls()).To(Equal([]string{"describe"}))
	})

	Context("after a fatal outcome", func() {
		BeforeEach(func() {
			model.FailInit(dynamo.StatusFatal)
			_, err := drv.Describe(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(drv.Initialize(ctx, sim.SmallConfig(3))).To(MatchError(dynamo.ErrFatal))
		})

		It("refuses further model calls", func() {
			_, err := drv.Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrModelFailed))
			Expect(model.Calls()).To(Equal([]string{"describe", "init"}))
		})

		It("still releases the model once", func() {
			Expect(drv.Close(ctx)).To(Succeed())
			Expect(drv.Close(ctx)).To(Succeed())
			Expect(model.CloseCount()).To(Equal(1))
		})
	})

	Context("after an error outcome", func() {
		It("terminates without refusing close", func() {
			model.OnStep(func(call int, t, h float64) dynamo.StepResponse {
				return dynamo.StepResponse{Status: dynamo.StatusError}
			})
			_, err := drv.Describe(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(drv.Initialize(ctx, sim.SmallConfig(3))).To(Succeed())

			res, err := drv.Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrError))
			Expect(res.Rows).To(Equal(1))
			Expect(drv.Phase()).To(Equal(sim.PhaseTerminated))

			_, err = drv.Run(ctx)
			Expect(err).To(MatchError(dynamo.ErrInvalidTransition))
			Expect(drv.Close(ctx)).To(Succeed())
		})
	})
})
