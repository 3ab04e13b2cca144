package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/walletflow"
	"github.com/MrEthical07/walletflow/internal/fakes"
	"github.com/MrEthical07/walletflow/keys"
	"github.com/MrEthical07/walletflow/onboarding"
)

const simulatedPhrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var (
	flagEmail   string
	flagPincode string
	flagKeep    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a complete flow against scripted collaborators",
}

var simulateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Sign in, bind a phone and finish security setup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		create := onboarding.CreateWalletProvider{
			Auth: &fakes.Auth{Email: flagEmail},
			Facade: &fakes.Facade{SignUpResult: onboarding.SignUpResult{
				PrivateKey:             "simulated-sol-key",
				ReconstructedPublicKey: "simulated-eth-pub",
				DeviceShare:            "simulated-device-share",
				CustomShare:            "simulated-custom-share",
				Metadata:               "simulated-metadata",
			}},
			SecurityStatus: fakes.SecurityStatus{Biometry: onboarding.BiometryNone},
		}
		engine, cleanup, err := openEngine(providers{create: &create}, true)
		if err != nil {
			return err
		}
		defer cleanup()
		return simulateCreate(cmd.Context(), engine, cmd.OutOrStdout())
	},
}

var simulateRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore from a keychain account and finish security setup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		restore := onboarding.RestoreWalletProvider{
			Facade:         &fakes.Facade{},
			Auth:           &fakes.Auth{Email: flagEmail},
			Gateway:        &fakes.Gateway{},
			SecurityStatus: fakes.SecurityStatus{Biometry: onboarding.BiometryNone},
			ICloudAccounts: fakes.ICloudAccounts{Accounts: []onboarding.RawICloudAccount{
				{Name: "simulated", Phrase: simulatedPhrase, DerivablePath: keys.DefaultDerivablePath},
			}},
		}
		engine, cleanup, err := openEngine(providers{restore: &restore}, true)
		if err != nil {
			return err
		}
		defer cleanup()
		return simulateRestore(cmd.Context(), engine, cmd.OutOrStdout())
	},
}

func init() {
	simulateCmd.PersistentFlags().StringVar(&flagEmail, "email", "alice@example.com", "email reported by the scripted social provider")
	simulateCmd.PersistentFlags().StringVar(&flagPincode, "pincode", "123456", "six digit PIN entered during security setup")
	simulateCmd.PersistentFlags().BoolVar(&flagKeep, "keep", false, "keep the finished snapshot instead of discarding it")
	simulateCmd.AddCommand(simulateCreateCmd, simulateRestoreCmd)
}

func simulateCreate(ctx context.Context, engine *walletflow.Engine, out io.Writer) error {
	info, state, err := engine.StartCreateWallet(ctx)
	if err != nil {
		return err
	}
	printStep(out, "start", info, state)

	events := []onboarding.CreateWalletEvent{
		onboarding.CreateWalletSocialSignInEvent{Event: onboarding.SocialSignIn{Provider: onboarding.SocialProviderGoogle}},
		onboarding.CreateWalletBindingPhoneEvent{Event: onboarding.BindingPhoneSubmitNumber{Phone: "+15550100"}},
		onboarding.CreateWalletBindingPhoneEvent{Event: onboarding.BindingPhoneSubmitOTP{OTP: "000000"}},
		onboarding.CreateWalletSecuritySetupEvent{Event: onboarding.SecurityPincodeCreated{Pincode: flagPincode}},
		onboarding.CreateWalletSecuritySetupEvent{Event: onboarding.SecurityPincodeConfirmed{Pincode: flagPincode}},
	}
	for _, ev := range events {
		info, state, err = engine.SendCreateWallet(ctx, info.ID, ev)
		if err != nil {
			return fmt.Errorf("%s: %w", variant(ev), err)
		}
		printStep(out, variant(ev), info, state)
	}
	return finishSimulation(ctx, engine, out, info, state)
}

func simulateRestore(ctx context.Context, engine *walletflow.Engine, out io.Writer) error {
	info, state, err := engine.StartRestoreWallet(ctx)
	if err != nil {
		return err
	}
	printStep(out, "start", info, state)

	info, state, err = engine.SendRestoreWallet(ctx, info.ID, onboarding.RestoreWalletUseKeychain{})
	if err != nil {
		return fmt.Errorf("use keychain: %w", err)
	}
	printStep(out, "RestoreWalletUseKeychain", info, state)

	list, ok := state.(onboarding.RestoreWalletSignInKeychain)
	if !ok || len(list.Accounts) == 0 {
		return fmt.Errorf("no keychain account derived")
	}

	events := []onboarding.RestoreWalletEvent{
		onboarding.RestoreWalletPickAccount{Account: list.Accounts[0]},
		onboarding.RestoreWalletSecuritySetupEvent{Event: onboarding.SecurityPincodeCreated{Pincode: flagPincode}},
		onboarding.RestoreWalletSecuritySetupEvent{Event: onboarding.SecurityPincodeConfirmed{Pincode: flagPincode}},
	}
	for _, ev := range events {
		info, state, err = engine.SendRestoreWallet(ctx, info.ID, ev)
		if err != nil {
			return fmt.Errorf("%s: %w", variant(ev), err)
		}
		printStep(out, variant(ev), info, state)
	}
	return finishSimulation(ctx, engine, out, info, state)
}

func finishSimulation(ctx context.Context, engine *walletflow.Engine, out io.Writer, info walletflow.FlowInfo, state any) error {
	if !info.Terminal {
		return fmt.Errorf("flow %s stopped at step %v in %s", info.ID, info.Step, variant(state))
	}
	m := engine.MetricsSnapshot()
	fmt.Fprintf(out, "finished %s after %d transitions\n", info.ID, m.Counters[walletflow.MetricTransitionAccepted])
	if flagKeep {
		return nil
	}
	return engine.Discard(ctx, info.ID)
}

// printStep never prints state fields; they hold key material.
func printStep(out io.Writer, label string, info walletflow.FlowInfo, state any) {
	fmt.Fprintf(out, "%-34s step=%-6v rev=%d continuable=%-5t state=%s\n",
		label, info.Step, info.Revision, info.Continuable, variant(state))
}

func variant(v any) string {
	name := fmt.Sprintf("%T", v)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
