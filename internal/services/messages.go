package services

import "github.com/soaringjerry/dronerecon/internal/config"

const newUserWelcome = "Please answer some questions about yourself before we get started."

// WelcomeMessage is the greeting on the welcome page.
func WelcomeMessage(newUser bool, mix string) string {
	if newUser {
		return newUserWelcome
	}
	switch mix {
	case config.MixScreen:
		return "Thanks for coming back! Please answer a series of questions on the next screen. " +
			"We will use those answers to determine if you are eligible for future studies."
	case config.MixBoth:
		return "Thanks for coming back! Please answer a series of questions on the next screen. " +
			"Once those are completed, you will move onto the game."
	default:
		return "Thanks for coming back! We really appreciate you taking the time to return. " +
			"Get ready to do some drone reconnaissance!"
	}
}

// TokenMessage is the text around the payment token on the completion page.
func TokenMessage(mix, token string) string {
	if mix == config.MixScreen {
		return "Thanks for taking the time to answer the questions! We will analyze your responses and " +
			"determine if you are eligible for future studies. Your payment token for the task is: " + token +
			". To register for payment, please enter that token in the Prolific page. You can close this window."
	}
	return "Your payment code for the task is: " + token +
		". To register for payment, please enter that code in the Prolific recruitment page. You can close this window."
}
